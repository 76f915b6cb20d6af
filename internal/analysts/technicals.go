package analysts

import (
	"fmt"
	"math"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// TechnicalsAnalyst scores price action: RSI, MACD and the position of
// the last close relative to its 20-day moving average.
type TechnicalsAnalyst struct {
	logger *logger.Logger
}

// NewTechnicalsAnalyst creates a new technicals analyst
func NewTechnicalsAnalyst(log *logger.Logger) *TechnicalsAnalyst {
	return &TechnicalsAnalyst{logger: log}
}

func (a *TechnicalsAnalyst) Name() string { return NameTechnicals }

// MinLookback covers the slow MACD EMA plus warmup
func (a *TechnicalsAnalyst) MinLookback() int { return 30 }

// Evaluate scores the snapshot's price series
func (a *TechnicalsAnalyst) Evaluate(snapshot *contracts.MarketSnapshot) (*contracts.Signal, error) {
	if snapshot.PriceCount() < a.MinLookback() {
		return nil, &contracts.InsufficientDataError{
			Analyst: a.Name(),
			Need:    a.MinLookback(),
			Got:     snapshot.PriceCount(),
		}
	}

	closes := make([]float64, len(snapshot.Prices))
	for i, p := range snapshot.Prices {
		closes[i] = p.Close
	}

	rsi := calculateRSI(closes, 14)
	macd := calculateMACD(closes)
	maCross := calculateMACross(closes, 20)

	score := technicalScore(rsi, macd, maCross, closes[len(closes)-1])

	a.logger.WithFields(map[string]interface{}{
		"instrument": snapshot.Instrument,
		"rsi":        rsi,
		"macd":       macd,
		"ma_cross":   maCross,
		"score":      score,
	}).Debug("Calculated technical signal")

	rationale := fmt.Sprintf("RSI(14)=%.1f, MACD=%.3f, MA20 cross=%+d", rsi, macd, maCross)
	return signalFromScore(a.Name(), snapshot.Instrument, score, rationale), nil
}

// calculateRSI computes the Relative Strength Index over the last
// period bars. Closes are ordered oldest first.
func calculateRSI(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50.0 // Neutral
	}

	var gains, losses float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			gains += change
		} else {
			losses += -change
		}
	}

	if losses == 0 {
		return 100.0
	}

	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// calculateMACD returns EMA12 - EMA26, normalized by the last close so
// the value is comparable across price levels.
func calculateMACD(closes []float64) float64 {
	if len(closes) < 26 {
		return 0.0
	}

	ema12 := calculateEMA(closes, 12)
	ema26 := calculateEMA(closes, 26)

	last := closes[len(closes)-1]
	if last == 0 {
		return 0.0
	}
	return (ema12 - ema26) / last
}

// calculateEMA computes an exponential moving average seeded with the
// SMA of the first period bars.
func calculateEMA(closes []float64, period int) float64 {
	if len(closes) < period {
		return 0.0
	}

	var sum float64
	for i := 0; i < period; i++ {
		sum += closes[i]
	}
	ema := sum / float64(period)

	multiplier := 2.0 / (float64(period) + 1.0)
	for i := period; i < len(closes); i++ {
		ema = closes[i]*multiplier + ema*(1-multiplier)
	}

	return ema
}

// calculateMACross compares the last close to its n-day moving average.
// Returns -1 (below by >2%), 0 (near), or 1 (above by >2%).
func calculateMACross(closes []float64, n int) int {
	if len(closes) < n {
		return 0
	}

	var sum float64
	for i := len(closes) - n; i < len(closes); i++ {
		sum += closes[i]
	}
	ma := sum / float64(n)
	if ma == 0 {
		return 0
	}

	diff := (closes[len(closes)-1] - ma) / ma
	if diff > 0.02 {
		return 1
	}
	if diff < -0.02 {
		return -1
	}
	return 0
}

// technicalScore blends the three indicators into [-1,1].
// RSI 40%, MACD 40%, MA cross 20%.
func technicalScore(rsi, macd float64, maCross int, lastClose float64) float64 {
	// RSI: oversold reads positive, overbought negative
	var rsiScore float64
	switch {
	case rsi < 30:
		rsiScore = (30 - rsi) / 30
	case rsi > 70:
		rsiScore = (70 - rsi) / 30
	default:
		rsiScore = (50 - rsi) / 20
	}

	macdScore := math.Tanh(macd * 20)
	maScore := float64(maCross)

	return clampUnit(rsiScore*0.4 + macdScore*0.4 + maScore*0.2)
}
