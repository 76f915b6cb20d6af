package aggregate

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

func sig(analyst string, direction contracts.Direction, confidence float64) contracts.Signal {
	return contracts.Signal{
		Analyst:    analyst,
		Instrument: "AAPL",
		Direction:  direction,
		Confidence: confidence,
	}
}

func TestNew_RejectsBadWeights(t *testing.T) {
	_, err := New(nil, logger.NewNop())
	assert.Error(t, err)

	_, err = New(map[string]float64{"technicals": -0.5}, logger.NewNop())
	assert.Error(t, err)

	_, err = New(map[string]float64{"technicals": 0}, logger.NewNop())
	assert.Error(t, err)
}

func TestNew_NormalizesWeights(t *testing.T) {
	// Weights not summing to 1 are normalized, not rejected
	a, err := New(map[string]float64{"fundamentals": 2, "technicals": 2}, logger.NewNop())
	require.NoError(t, err)

	weights := a.Weights()
	assert.InDelta(t, 0.5, weights["fundamentals"], 1e-9)
	assert.InDelta(t, 0.5, weights["technicals"], 1e-9)
}

func TestAggregate_SpecScenario(t *testing.T) {
	// fundamentals bullish/0.8, technicals bearish/0.4, sentiment neutral/0.5
	// with weights 0.5/0.3/0.2 → bullish, magnitude 0.28
	a, err := New(map[string]float64{
		"fundamentals": 0.5,
		"technicals":   0.3,
		"sentiment":    0.2,
	}, logger.NewNop())
	require.NoError(t, err)

	score, err := a.Aggregate("AAPL", []contracts.Signal{
		sig("fundamentals", contracts.Bullish, 0.8),
		sig("technicals", contracts.Bearish, 0.4),
		sig("sentiment", contracts.Neutral, 0.5),
	})
	require.NoError(t, err)

	assert.Equal(t, contracts.Bullish, score.Direction)
	assert.InDelta(t, 0.28, score.Magnitude, 1e-9)
	assert.Len(t, score.Contributing, 3)
}

func TestAggregate_PermutationInvariant(t *testing.T) {
	a, err := New(map[string]float64{
		"fundamentals": 0.4,
		"technicals":   0.3,
		"sentiment":    0.2,
		"valuation":    0.1,
	}, logger.NewNop())
	require.NoError(t, err)

	signals := []contracts.Signal{
		sig("fundamentals", contracts.Bullish, 0.9),
		sig("technicals", contracts.Bearish, 0.6),
		sig("sentiment", contracts.Bullish, 0.3),
		sig("valuation", contracts.Bearish, 0.8),
	}

	base, err := a.Aggregate("AAPL", signals)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := make([]contracts.Signal, len(signals))
		copy(shuffled, signals)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		score, err := a.Aggregate("AAPL", shuffled)
		require.NoError(t, err)
		assert.Equal(t, base.Direction, score.Direction)
		assert.InDelta(t, base.Magnitude, score.Magnitude, 1e-12)
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	a, err := New(map[string]float64{"fundamentals": 0.6, "technicals": 0.4}, logger.NewNop())
	require.NoError(t, err)

	signals := []contracts.Signal{
		sig("fundamentals", contracts.Bullish, 0.7),
		sig("technicals", contracts.Bearish, 0.2),
	}

	first, err := a.Aggregate("AAPL", signals)
	require.NoError(t, err)
	second, err := a.Aggregate("AAPL", signals)
	require.NoError(t, err)

	// Bit-identical, not merely close
	assert.Equal(t, first.Magnitude, second.Magnitude)
	assert.Equal(t, first.Direction, second.Direction)
	assert.Equal(t, first.Weights, second.Weights)
}

func TestAggregate_RedistributesAbsentWeight(t *testing.T) {
	a, err := New(map[string]float64{
		"fundamentals": 0.5,
		"technicals":   0.3,
		"sentiment":    0.2,
	}, logger.NewNop())
	require.NoError(t, err)

	// Sentiment abstained: its 0.2 is spread over the other two
	// proportional to their configured weights (0.5→0.625, 0.3→0.375).
	score, err := a.Aggregate("AAPL", []contracts.Signal{
		sig("fundamentals", contracts.Bullish, 0.8),
		sig("technicals", contracts.Bearish, 0.4),
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.625, score.Weights["fundamentals"], 1e-9)
	assert.InDelta(t, 0.375, score.Weights["technicals"], 1e-9)
	assert.InDelta(t, 0.625*0.8-0.375*0.4, score.Magnitude, 1e-9)

	var sum float64
	for _, w := range score.Weights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestAggregate_AllAbstainFailsWithNoSignal(t *testing.T) {
	a, err := New(map[string]float64{"fundamentals": 0.5, "technicals": 0.5}, logger.NewNop())
	require.NoError(t, err)

	_, err = a.Aggregate("AAPL", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrNoSignal))
}

func TestAggregate_ExactZeroIsNeutral(t *testing.T) {
	a, err := New(map[string]float64{"fundamentals": 0.5, "technicals": 0.5}, logger.NewNop())
	require.NoError(t, err)

	score, err := a.Aggregate("AAPL", []contracts.Signal{
		sig("fundamentals", contracts.Bullish, 0.6),
		sig("technicals", contracts.Bearish, 0.6),
	})
	require.NoError(t, err)

	assert.Equal(t, contracts.Neutral, score.Direction)
	assert.Equal(t, 0.0, score.Magnitude)
}

func TestAggregate_IgnoresUnconfiguredAnalysts(t *testing.T) {
	a, err := New(map[string]float64{"fundamentals": 1.0}, logger.NewNop())
	require.NoError(t, err)

	score, err := a.Aggregate("AAPL", []contracts.Signal{
		sig("fundamentals", contracts.Bullish, 0.5),
		sig("astrology", contracts.Bearish, 1.0),
	})
	require.NoError(t, err)

	assert.Equal(t, contracts.Bullish, score.Direction)
	assert.InDelta(t, 0.5, score.Magnitude, 1e-9)
	assert.Len(t, score.Weights, 1)
}
