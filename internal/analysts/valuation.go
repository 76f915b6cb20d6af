package analysts

import (
	"fmt"
	"math"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// ValuationAnalyst scores price multiples: low multiples read as
// undervalued (bullish), stretched multiples as overvalued (bearish).
type ValuationAnalyst struct {
	logger *logger.Logger
}

// NewValuationAnalyst creates a new valuation analyst
func NewValuationAnalyst(log *logger.Logger) *ValuationAnalyst {
	return &ValuationAnalyst{logger: log}
}

func (a *ValuationAnalyst) Name() string { return NameValuation }

// MinLookback is 1: valuation needs fundamentals, not price history
func (a *ValuationAnalyst) MinLookback() int { return 1 }

// Evaluate scores the snapshot's valuation multiples
func (a *ValuationAnalyst) Evaluate(snapshot *contracts.MarketSnapshot) (*contracts.Signal, error) {
	f := snapshot.Fundamentals
	if f == nil || (f.PER <= 0 && f.PBR <= 0 && f.PSR <= 0) {
		return nil, &contracts.InsufficientDataError{
			Analyst: a.Name(),
			Need:    a.MinLookback(),
			Got:     0,
		}
	}

	score := valuationScore(f)

	a.logger.WithFields(map[string]interface{}{
		"instrument": snapshot.Instrument,
		"per":        f.PER,
		"pbr":        f.PBR,
		"psr":        f.PSR,
		"score":      score,
	}).Debug("Calculated valuation signal")

	rationale := fmt.Sprintf("PER=%.1f, PBR=%.2f, PSR=%.2f", f.PER, f.PBR, f.PSR)
	return signalFromScore(a.Name(), snapshot.Instrument, score, rationale), nil
}

// valuationScore blends the multiples into [-1,1].
// PER 50%, PBR 30%, PSR 20%; metrics at or below zero are skipped and
// their weight falls on the remaining ones.
func valuationScore(f *contracts.Fundamentals) float64 {
	type component struct {
		score  float64
		weight float64
	}
	var components []component

	// PER: 15 reads flat, single digits cheap, 30+ rich
	if f.PER > 0 {
		components = append(components, component{clampUnit((15 - f.PER) / 15), 0.5})
	}

	// PBR: 1.5 reads flat
	if f.PBR > 0 {
		components = append(components, component{clampUnit((1.5 - f.PBR) / 1.5), 0.3})
	}

	// PSR: 2.0 reads flat
	if f.PSR > 0 {
		components = append(components, component{clampUnit((2.0 - f.PSR) / 2.0), 0.2})
	}

	var weighted, totalWeight float64
	for _, c := range components {
		weighted += c.score * c.weight
		totalWeight += c.weight
	}
	if totalWeight == 0 {
		return 0
	}

	// Smooth toward the asymptotes
	return math.Tanh(weighted / totalWeight * 1.5)
}
