package marketdata

import (
	"context"
	"time"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
	"github.com/quorumtrade/quorum/pkg/redis"
)

// CachedGateway caches snapshots in Redis in front of an inner
// gateway. Snapshots are keyed by (instrument, asOf date, lookback)
// and historical data never changes, so a daily TTL is safe.
//
// Cache failures degrade to the inner gateway, never to a run failure.
type CachedGateway struct {
	inner  contracts.MarketDataGateway
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCachedGateway wraps inner with a Redis snapshot cache
func NewCachedGateway(inner contracts.MarketDataGateway, cache *redis.Cache, log *logger.Logger) *CachedGateway {
	return &CachedGateway{
		inner:  inner,
		cache:  cache,
		ttl:    redis.TTLDaily,
		logger: log,
	}
}

// FetchSnapshot serves from cache when possible
func (g *CachedGateway) FetchSnapshot(ctx context.Context, instrument string, asOf time.Time, lookbackDays int) (*contracts.MarketSnapshot, error) {
	key := redis.SnapshotKey(instrument, asOf.Format("2006-01-02"), lookbackDays)

	var cached contracts.MarketSnapshot
	hit, err := g.cache.Get(ctx, key, &cached)
	if err != nil {
		g.logger.WithError(err).WithField("instrument", instrument).Warn("Snapshot cache read failed")
	}
	if hit {
		return &cached, nil
	}

	snap, err := g.inner.FetchSnapshot(ctx, instrument, asOf, lookbackDays)
	if err != nil {
		return nil, err
	}

	if err := g.cache.Set(ctx, key, snap, g.ttl); err != nil {
		g.logger.WithError(err).WithField("instrument", instrument).Warn("Snapshot cache write failed")
	}
	return snap, nil
}
