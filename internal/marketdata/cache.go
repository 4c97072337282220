package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockplay/trade-engine/internal/metrics"
	"github.com/stockplay/trade-engine/internal/model"
)

// QuoteSource is the provider surface the cache wraps.
type QuoteSource interface {
	GetQuote(ctx context.Context, sym string) (*model.Quote, error)
}

// CachedQuotes wraps a quote source with a Redis read-through cache. Only
// quotes are cached; wallet and position reads always hit the primary
// store so the ledger can never serve a stale balance.
type CachedQuotes struct {
	source QuoteSource
	rdb    *redis.Client
	ttl    time.Duration
}

// NewCachedQuotes creates a cached wrapper around a quote source.
func NewCachedQuotes(source QuoteSource, rdb *redis.Client, ttl time.Duration) *CachedQuotes {
	return &CachedQuotes{
		source: source,
		rdb:    rdb,
		ttl:    ttl,
	}
}

// GetQuote checks Redis first, then falls back to the upstream provider.
// A provider error is never masked by a cache hit on the fallback path.
func (c *CachedQuotes) GetQuote(ctx context.Context, sym string) (*model.Quote, error) {
	data, err := c.rdb.Get(ctx, quoteKey(sym)).Bytes()
	if err == nil {
		var q model.Quote
		if json.Unmarshal(data, &q) == nil {
			metrics.QuoteCacheHits.Inc()
			return &q, nil
		}
	}

	metrics.QuoteCacheMisses.Inc()
	q, err := c.source.GetQuote(ctx, sym)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(q); err == nil {
		c.rdb.Set(ctx, quoteKey(sym), data, c.ttl)
	}
	return q, nil
}

func quoteKey(sym string) string { return fmt.Sprintf("quote:%s", sym) }
