package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/stockplay/trade-engine/internal/symbol"
)

// Handlers exposes the market-data gateway over HTTP. The legacy route
// names (Chart1, Chart2, Chart4) are kept for frontend compatibility.
type Handlers struct {
	finnhub *Client
	quotes  QuoteSource
	aggs    *AggsClient
}

// NewHandlers wires the gateway. quotes may be the finnhub client itself
// or a CachedQuotes wrapper; finnhub or aggs may be nil when the matching
// API key is not configured, and their endpoints return 503.
func NewHandlers(finnhub *Client, quotes QuoteSource, aggs *AggsClient) *Handlers {
	return &Handlers{
		finnhub: finnhub,
		quotes:  quotes,
		aggs:    aggs,
	}
}

// Search handles GET /api/v1/stocks?query=...
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	if h.finnhub == nil {
		writeUnconfigured(w)
		return
	}
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, "Query parameter is required", http.StatusBadRequest)
		return
	}

	resp, err := h.finnhub.Search(r.Context(), query)
	h.respond(w, "search", resp, err)
}

// Quote handles GET /api/v1/quote?symbol=...
func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	if h.quotes == nil {
		writeUnconfigured(w)
		return
	}
	sym, ok := querySymbol(w, r)
	if !ok {
		return
	}

	quote, err := h.quotes.GetQuote(r.Context(), sym)
	h.respond(w, "quote", quote, err)
}

// Company handles GET /api/v1/company?symbol=...
func (h *Handlers) Company(w http.ResponseWriter, r *http.Request) {
	h.proxyFinnhub(w, r, "company", func(ctx context.Context, sym string) (interface{}, error) {
		return h.finnhub.GetCompanyProfile(ctx, sym)
	})
}

// Peers handles GET /api/v1/peers?symbol=...
func (h *Handlers) Peers(w http.ResponseWriter, r *http.Request) {
	h.proxyFinnhub(w, r, "peers", func(ctx context.Context, sym string) (interface{}, error) {
		return h.finnhub.GetPeers(ctx, sym)
	})
}

// News handles GET /api/v1/News?symbol=...
func (h *Handlers) News(w http.ResponseWriter, r *http.Request) {
	h.proxyFinnhub(w, r, "news", func(ctx context.Context, sym string) (interface{}, error) {
		return h.finnhub.GetCompanyNews(ctx, sym)
	})
}

// Sentiments handles GET /api/v1/Sentiments?symbol=...
func (h *Handlers) Sentiments(w http.ResponseWriter, r *http.Request) {
	h.proxyFinnhub(w, r, "sentiment", func(ctx context.Context, sym string) (interface{}, error) {
		return h.finnhub.GetInsiderSentiment(ctx, sym)
	})
}

// Recommendations handles GET /api/v1/Chart2?symbol=...
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	h.proxyFinnhub(w, r, "recommendations", func(ctx context.Context, sym string) (interface{}, error) {
		return h.finnhub.GetRecommendationTrends(ctx, sym)
	})
}

// Earnings handles GET /api/v1/Chart4?symbol=...
func (h *Handlers) Earnings(w http.ResponseWriter, r *http.Request) {
	h.proxyFinnhub(w, r, "earnings", func(ctx context.Context, sym string) (interface{}, error) {
		return h.finnhub.GetEarnings(ctx, sym)
	})
}

// ChartSeries handles GET /api/v1/Chart1?symbol=...
func (h *Handlers) ChartSeries(w http.ResponseWriter, r *http.Request) {
	if h.aggs == nil {
		writeUnconfigured(w)
		return
	}
	sym, ok := querySymbol(w, r)
	if !ok {
		return
	}

	series, err := h.aggs.GetChartSeries(r.Context(), sym)
	h.respond(w, "chart", series, err)
}

// HistoricalData handles GET /api/v1/historical_data?symbol=...
func (h *Handlers) HistoricalData(w http.ResponseWriter, r *http.Request) {
	if h.aggs == nil {
		writeUnconfigured(w)
		return
	}
	sym, ok := querySymbol(w, r)
	if !ok {
		return
	}

	candles, err := h.aggs.GetHistoricalData(r.Context(), sym)
	h.respond(w, "historical", candles, err)
}

func (h *Handlers) proxyFinnhub(w http.ResponseWriter, r *http.Request, op string, fetch func(context.Context, string) (interface{}, error)) {
	if h.finnhub == nil {
		writeUnconfigured(w)
		return
	}
	sym, ok := querySymbol(w, r)
	if !ok {
		return
	}

	data, err := fetch(r.Context(), sym)
	h.respond(w, op, data, err)
}

func (h *Handlers) respond(w http.ResponseWriter, op string, data interface{}, err error) {
	if err != nil {
		slog.Error("market data fetch failed", "op", op, "err", err)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
			writeError(w, "Upstream rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		writeError(w, "Failed to fetch market data", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// querySymbol validates the symbol query parameter.
func querySymbol(w http.ResponseWriter, r *http.Request) (string, bool) {
	ticker, err := symbol.ParseTicker(r.URL.Query().Get("symbol"))
	if err != nil {
		writeError(w, "Invalid or missing symbol parameter", http.StatusBadRequest)
		return "", false
	}
	return ticker, true
}

func writeUnconfigured(w http.ResponseWriter) {
	writeError(w, "Market data provider not configured", http.StatusServiceUnavailable)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
