// Package ratelimit provides per-client HTTP rate limiting with tiered
// budgets. Trade endpoints and external-data proxies get tighter budgets
// than plain API reads.
package ratelimit

import (
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/stockplay/trade-engine/internal/metrics"
)

// Tier names a rate budget class.
type Tier string

const (
	// TierAPI covers portfolio and watchlist reads.
	TierAPI Tier = "api"
	// TierTrade covers buy, sell, and reset.
	TierTrade Tier = "trade"
	// TierExternal covers endpoints that proxy upstream market data.
	TierExternal Tier = "external"
)

// Config holds the budget for one tier.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfigs returns the budgets used in production.
func DefaultConfigs() map[Tier]Config {
	return map[Tier]Config{
		TierAPI:      {RequestsPerSecond: 20, Burst: 40},
		TierTrade:    {RequestsPerSecond: 5, Burst: 10},
		TierExternal: {RequestsPerSecond: 10, Burst: 20},
	}
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter tracks a token bucket per client IP per tier. Idle clients are
// evicted so the map does not grow without bound.
type Limiter struct {
	mu      sync.Mutex
	configs map[Tier]Config
	clients map[Tier]map[string]*clientLimiter
	ttl     time.Duration
}

// New creates a limiter and starts the background eviction loop.
func New(configs map[Tier]Config) *Limiter {
	l := &Limiter{
		configs: configs,
		clients: make(map[Tier]map[string]*clientLimiter),
		ttl:     10 * time.Minute,
	}
	for tier := range configs {
		l.clients[tier] = make(map[string]*clientLimiter)
	}
	go l.evictLoop()
	return l
}

// Middleware returns a chi-compatible middleware enforcing the given tier.
func (l *Limiter) Middleware(tier Tier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(tier, clientIP(r)) {
				metrics.RateLimited.WithLabelValues(string(tier)).Inc()
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests. Please slow down.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) allow(tier Tier, ip string) bool {
	cfg, ok := l.configs[tier]
	if !ok {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[tier][ip]
	if !ok {
		c = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		}
		l.clients[tier][ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter.Allow()
}

func (l *Limiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-l.ttl)
		l.mu.Lock()
		for tier := range l.clients {
			for ip, c := range l.clients[tier] {
				if c.lastSeen.Before(cutoff) {
					delete(l.clients[tier], ip)
				}
			}
		}
		l.mu.Unlock()
	}
}

// clientIP resolves the caller's address. RealIP middleware runs earlier in
// the chain, so RemoteAddr already reflects X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
