package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumtrade/quorum/internal/contracts"
)

func TestStaticGatewayServesRegisteredSnapshot(t *testing.T) {
	g := NewStaticGateway()
	g.Put(&contracts.MarketSnapshot{
		Instrument: "AAPL",
		Prices:     []contracts.PricePoint{{Close: 100}},
	})

	asOf := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	snap, err := g.FetchSnapshot(context.Background(), "AAPL", asOf, 90)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", snap.Instrument)
	assert.Equal(t, asOf, snap.AsOf)
	assert.Equal(t, 90, snap.LookbackDays)
	assert.Equal(t, 1, snap.PriceCount())
}

func TestStaticGatewayUnknownInstrument(t *testing.T) {
	g := NewStaticGateway()

	_, err := g.FetchSnapshot(context.Background(), "MISSING", time.Now(), 90)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrDataUnavailable))
}

func TestStaticGatewayHonorsCancellation(t *testing.T) {
	g := NewStaticGateway()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.FetchSnapshot(ctx, "AAPL", time.Now(), 90)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
