// Package metrics provides Prometheus instrumentation for the trade engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts settled trades, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockplay_trades_total",
		Help: "Total number of trades settled",
	}, []string{"side"})

	// TradeLatency tracks settlement latency by side.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockplay_trade_latency_seconds",
		Help:    "Trade settlement latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// TradeRejections counts trades rejected before settlement, by reason.
	TradeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockplay_trade_rejections_total",
		Help: "Trades rejected without mutation",
	}, []string{"reason"})

	// TradeVolume accumulates settled share volume per instrument.
	TradeVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockplay_trade_volume_total",
		Help: "Cumulative settled volume in shares",
	}, []string{"stock_name", "side"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stockplay_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// QuoteCacheHits / QuoteCacheMisses instrument the redis quote cache.
	QuoteCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockplay_quote_cache_hits_total",
		Help: "Quote lookups served from cache",
	})
	QuoteCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stockplay_quote_cache_misses_total",
		Help: "Quote lookups forwarded upstream",
	})

	// RateLimited counts requests rejected by the rate limiter, by tier.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockplay_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"tier"})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stockplay_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "stockplay_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; the API surface is small enough
		// that cardinality stays bounded.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
