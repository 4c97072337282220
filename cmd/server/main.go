package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/stockplay/trade-engine/internal/ledger"
	"github.com/stockplay/trade-engine/internal/marketdata"
	"github.com/stockplay/trade-engine/internal/metrics"
	"github.com/stockplay/trade-engine/internal/ratelimit"
	"github.com/stockplay/trade-engine/internal/store"
	"github.com/stockplay/trade-engine/internal/trade"
	"github.com/stockplay/trade-engine/internal/watchlist"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	initial := ledger.DefaultInitialBalance
	if raw := os.Getenv("STOCKPLAY_INITIAL_BALANCE"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil || !v.IsPositive() {
			slog.Error("invalid STOCKPLAY_INITIAL_BALANCE", "value", raw)
			os.Exit(1)
		}
		initial = v
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool, initial)
		slog.Info("connected to PostgreSQL")
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore(initial)
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Market data providers ---
	var finnhub *marketdata.Client
	var quotes marketdata.QuoteSource
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		finnhub = marketdata.NewClient(key, marketdata.WithLogger(logger))
		quotes = finnhub

		// Quotes go through a Redis read-through cache when configured.
		// Wallet and position reads always hit the primary store.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			quotes = marketdata.NewCachedQuotes(finnhub, rdb, 15*time.Second)
			slog.Info("Redis quote cache enabled")
		}
	} else {
		slog.Warn("FINNHUB_API_KEY not set, market data endpoints disabled")
	}

	var aggs *marketdata.AggsClient
	if key := os.Getenv("POLYGON_API_KEY"); key != "" {
		aggs = marketdata.NewAggsClient(key)
	} else {
		slog.Warn("POLYGON_API_KEY not set, chart endpoints disabled")
	}

	marketSvc := marketdata.NewHandlers(finnhub, quotes, aggs)

	// --- WebSocket hub ---
	wsHub := trade.NewWSHub()
	go wsHub.Run()

	// --- Services ---
	tradeSvc := trade.NewService(st, initial, wsHub)
	watchlistSvc := watchlist.NewService(st)

	// --- Rate limiting ---
	limiter := ratelimit.New(ratelimit.DefaultConfigs())

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"trade-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint for real-time fill notifications.
		r.Get("/ws", wsHub.HandleWS)

		// Wallet and portfolio queries.
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware(ratelimit.TierAPI))
			r.Get("/wallet", tradeSvc.GetBalance)
			r.Get("/portfolio", tradeSvc.GetPortfolio)
			r.Get("/portfolio/{stockName}", tradeSvc.GetHolding)
			r.Get("/trades", tradeSvc.ListTrades)
		})

		// Trade execution.
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware(ratelimit.TierTrade))
			r.Post("/trade/buy", tradeSvc.Buy)
			r.Post("/trade/sell", tradeSvc.Sell)
			r.Post("/reset", tradeSvc.Reset)
		})

		// Watchlist.
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware(ratelimit.TierAPI))
			r.Get("/watchlist", watchlistSvc.List)
			r.Post("/watchlist", watchlistSvc.Add)
			r.Delete("/watchlist/{symbol}", watchlistSvc.Remove)
			r.Post("/watchlist/star", watchlistSvc.Star)
		})

		// Market data gateway.
		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware(ratelimit.TierExternal))
			r.Get("/stocks", marketSvc.Search)
			r.Get("/quote", marketSvc.Quote)
			r.Get("/company", marketSvc.Company)
			r.Get("/peers", marketSvc.Peers)
			r.Get("/News", marketSvc.News)
			r.Get("/Sentiments", marketSvc.Sentiments)
			r.Get("/Chart1", marketSvc.ChartSeries)
			r.Get("/Chart2", marketSvc.Recommendations)
			r.Get("/Chart4", marketSvc.Earnings)
			r.Get("/historical_data", marketSvc.HistoricalData)
		})
	})

	// Legacy aliases kept for old frontend builds.
	r.Route("/api", func(r chi.Router) {
		r.Use(limiter.Middleware(ratelimit.TierAPI))
		r.Post("/Money", tradeSvc.GetBalance)
		r.Post("/portfolio", tradeSvc.GetPortfolio)
		r.Post("/buy", tradeSvc.Buy)
		r.Post("/sell", tradeSvc.Sell)
		r.Post("/addfav", watchlistSvc.Add)
		r.Post("/removefav", watchlistSvc.RemoveLegacy)
		r.Post("/star", watchlistSvc.Star)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("trade-engine listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down trade-engine...")
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("trade-engine stopped")
}
