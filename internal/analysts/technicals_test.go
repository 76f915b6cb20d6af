package analysts

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

func TestTechnicals_AbstainsOnShortWindow(t *testing.T) {
	a := NewTechnicalsAnalyst(logger.NewNop())
	snapshot := trendSnapshot("AAPL", 10, 100, 1)

	_, err := a.Evaluate(snapshot)
	require.Error(t, err)

	var insufficient *contracts.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, NameTechnicals, insufficient.Analyst)
	assert.Equal(t, 30, insufficient.Need)
	assert.Equal(t, 10, insufficient.Got)
	assert.True(t, contracts.IsAbstention(err))
}

func TestTechnicals_ProducesValidSignal(t *testing.T) {
	a := NewTechnicalsAnalyst(logger.NewNop())
	snapshot := trendSnapshot("AAPL", 60, 100, 0.5)

	sig, err := a.Evaluate(snapshot)
	require.NoError(t, err)

	assert.Equal(t, NameTechnicals, sig.Analyst)
	assert.Equal(t, "AAPL", sig.Instrument)
	assert.True(t, sig.Direction.Valid())
	assert.GreaterOrEqual(t, sig.Confidence, 0.0)
	assert.LessOrEqual(t, sig.Confidence, 1.0)
	assert.NotEmpty(t, sig.Rationale)
}

func TestCalculateRSI(t *testing.T) {
	// Monotonic gains: RSI pegs at 100
	up := make([]float64, 20)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	assert.Equal(t, 100.0, calculateRSI(up, 14))

	// Monotonic losses: RSI bottoms at 0
	down := make([]float64, 20)
	for i := range down {
		down[i] = 100 - float64(i)
	}
	assert.Equal(t, 0.0, calculateRSI(down, 14))

	// Too short: neutral
	assert.Equal(t, 50.0, calculateRSI([]float64{1, 2, 3}, 14))
}

func TestCalculateMACross(t *testing.T) {
	// Flat series sits on its moving average
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 100
	}
	assert.Equal(t, 0, calculateMACross(flat, 20))

	// Sharp rally at the end pushes the close above MA20
	rally := make([]float64, 30)
	for i := range rally {
		rally[i] = 100
	}
	rally[29] = 115
	assert.Equal(t, 1, calculateMACross(rally, 20))

	// Sharp selloff pushes it below
	selloff := make([]float64, 30)
	for i := range selloff {
		selloff[i] = 100
	}
	selloff[29] = 85
	assert.Equal(t, -1, calculateMACross(selloff, 20))
}

func TestCalculateMACD_Direction(t *testing.T) {
	// Uptrend: fast EMA above slow EMA
	up := make([]float64, 60)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	assert.Greater(t, calculateMACD(up), 0.0)

	// Downtrend: fast EMA below slow EMA
	down := make([]float64, 60)
	for i := range down {
		down[i] = 200 - float64(i)
	}
	assert.Less(t, calculateMACD(down), 0.0)
}
