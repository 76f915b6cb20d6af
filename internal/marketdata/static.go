package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/quorumtrade/quorum/internal/contracts"
)

// StaticGateway serves snapshots from memory. Used in tests and for
// offline runs against fixture data.
type StaticGateway struct {
	mu        sync.RWMutex
	snapshots map[string]*contracts.MarketSnapshot
}

// NewStaticGateway creates an empty in-memory gateway
func NewStaticGateway() *StaticGateway {
	return &StaticGateway{snapshots: make(map[string]*contracts.MarketSnapshot)}
}

// Put registers a snapshot for an instrument
func (g *StaticGateway) Put(snapshot *contracts.MarketSnapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshots[snapshot.Instrument] = snapshot
}

// FetchSnapshot returns the registered snapshot, adjusting AsOf and
// lookback to the requested values. Unknown instruments map to
// ErrDataUnavailable.
func (g *StaticGateway) FetchSnapshot(ctx context.Context, instrument string, asOf time.Time, lookbackDays int) (*contracts.MarketSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	snap, ok := g.snapshots[instrument]
	if !ok {
		return nil, fmt.Errorf("%w: %s", contracts.ErrDataUnavailable, instrument)
	}

	out := *snap
	out.AsOf = asOf
	out.LookbackDays = lookbackDays
	return &out, nil
}
