package analysts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry(logger.NewNop())

	names := r.Names()
	assert.Equal(t, []string{NameFundamentals, NameSentiment, NameTechnicals, NameValuation}, names)

	for _, name := range names {
		a, ok := r.Get(name)
		require.True(t, ok)
		assert.Equal(t, name, a.Name())
	}
}

func TestRegistry_SelectUnknown(t *testing.T) {
	r := DefaultRegistry(logger.NewNop())

	_, err := r.Select([]string{NameTechnicals, "astrology"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "astrology")
}

func TestSignalFromScore(t *testing.T) {
	tests := []struct {
		name          string
		score         float64
		wantDirection contracts.Direction
	}{
		{"strongly positive", 0.8, contracts.Bullish},
		{"just above band", 0.06, contracts.Bullish},
		{"inside band", 0.03, contracts.Neutral},
		{"zero", 0, contracts.Neutral},
		{"just below band", -0.06, contracts.Bearish},
		{"strongly negative", -0.9, contracts.Bearish},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := signalFromScore("technicals", "AAPL", tt.score, "test")
			assert.Equal(t, tt.wantDirection, sig.Direction)
			assert.GreaterOrEqual(t, sig.Confidence, 0.0)
			assert.LessOrEqual(t, sig.Confidence, 1.0)
		})
	}
}

// trendSnapshot builds a snapshot with n daily bars moving by step each day
func trendSnapshot(instrument string, n int, start, step float64) *contracts.MarketSnapshot {
	base := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	prices := make([]contracts.PricePoint, n)
	price := start
	for i := 0; i < n; i++ {
		prices[i] = contracts.PricePoint{Date: base.AddDate(0, 0, i), Close: price, Volume: 1000}
		price += step
	}
	return &contracts.MarketSnapshot{
		Instrument:   instrument,
		AsOf:         base.AddDate(0, 0, n),
		LookbackDays: n,
		Prices:       prices,
	}
}

func TestAnalysts_PureFunctions(t *testing.T) {
	// Evaluating the same snapshot twice must yield an identical call:
	// analysts hold no hidden state.
	snapshot := trendSnapshot("AAPL", 60, 100, 0.5)
	snapshot.Fundamentals = &contracts.Fundamentals{ROE: 18, DebtRatio: 60, NetMargin: 12, RevenueGrowth: 9, PER: 14, PBR: 1.2, PSR: 1.5}
	snapshot.News = []contracts.NewsItem{{Headline: "Company beats expectations with record profit"}}

	for _, a := range []contracts.Analyst{
		NewFundamentalsAnalyst(logger.NewNop()),
		NewTechnicalsAnalyst(logger.NewNop()),
		NewSentimentAnalyst(logger.NewNop()),
		NewValuationAnalyst(logger.NewNop()),
	} {
		first, err := a.Evaluate(snapshot)
		require.NoError(t, err, a.Name())
		second, err := a.Evaluate(snapshot)
		require.NoError(t, err, a.Name())

		assert.Equal(t, first.Direction, second.Direction, a.Name())
		assert.Equal(t, first.Confidence, second.Confidence, a.Name())
		assert.Equal(t, first.Rationale, second.Rationale, a.Name())
	}
}
