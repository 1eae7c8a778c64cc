package market

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"distress-detector/internal/cache"
)

const keyPrefix = "market:avg:"

// CachedProvider memoises another provider's averages for a TTL. Cache
// failures degrade to a direct read.
type CachedProvider struct {
	next   AverageProvider
	store  cache.Store
	ttl    time.Duration
	logger zerolog.Logger
}

// NewCachedProvider wraps next with store.
func NewCachedProvider(next AverageProvider, store cache.Store, ttl time.Duration, logger zerolog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedProvider{
		next:   next,
		store:  store,
		ttl:    ttl,
		logger: logger.With().Str("component", "market_cache").Logger(),
	}
}

// MarketAverage implements AverageProvider.
func (p *CachedProvider) MarketAverage(ctx context.Context, location string) (decimal.Decimal, error) {
	key := cacheKey(location)

	raw, found, err := p.store.Get(ctx, key)
	if err != nil {
		p.logger.Warn().Err(err).Str("location", location).Msg("cache read failed")
	} else if found {
		if avg, parseErr := decimal.NewFromString(string(raw)); parseErr == nil {
			return avg, nil
		}
		p.logger.Warn().Str("location", location).Msg("discarding unparsable cached average")
	}

	avg, err := p.next.MarketAverage(ctx, location)
	if err != nil {
		return decimal.Zero, err
	}

	if err := p.store.Set(ctx, key, []byte(avg.String()), p.ttl); err != nil {
		p.logger.Warn().Err(err).Str("location", location).Msg("cache write failed")
	}
	return avg, nil
}

// Invalidate drops the cached average for location.
func (p *CachedProvider) Invalidate(ctx context.Context, location string) {
	if err := p.store.Delete(ctx, cacheKey(location)); err != nil {
		p.logger.Warn().Err(err).Str("location", location).Msg("cache invalidate failed")
	}
}

func cacheKey(location string) string {
	return keyPrefix + strings.ToLower(location)
}

var (
	_ AverageProvider = (*CachedProvider)(nil)
	_ Invalidator     = (*CachedProvider)(nil)
)
