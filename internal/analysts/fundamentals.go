package analysts

import (
	"fmt"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// FundamentalsAnalyst scores business quality: profitability, leverage
// and growth from the latest reported fundamentals.
type FundamentalsAnalyst struct {
	logger *logger.Logger
}

// NewFundamentalsAnalyst creates a new fundamentals analyst
func NewFundamentalsAnalyst(log *logger.Logger) *FundamentalsAnalyst {
	return &FundamentalsAnalyst{logger: log}
}

func (a *FundamentalsAnalyst) Name() string { return NameFundamentals }

// MinLookback is 1: a single reported period is enough to opine
func (a *FundamentalsAnalyst) MinLookback() int { return 1 }

// Evaluate scores the snapshot's fundamental metrics
func (a *FundamentalsAnalyst) Evaluate(snapshot *contracts.MarketSnapshot) (*contracts.Signal, error) {
	f := snapshot.Fundamentals
	if f == nil {
		return nil, &contracts.InsufficientDataError{
			Analyst: a.Name(),
			Need:    a.MinLookback(),
			Got:     0,
		}
	}

	score := fundamentalScore(f)

	a.logger.WithFields(map[string]interface{}{
		"instrument":     snapshot.Instrument,
		"roe":            f.ROE,
		"debt_ratio":     f.DebtRatio,
		"net_margin":     f.NetMargin,
		"revenue_growth": f.RevenueGrowth,
		"score":          score,
	}).Debug("Calculated fundamental signal")

	rationale := fmt.Sprintf(
		"ROE=%.1f%%, debt ratio=%.1f%%, net margin=%.1f%%, revenue growth=%.1f%%",
		f.ROE, f.DebtRatio, f.NetMargin, f.RevenueGrowth,
	)
	return signalFromScore(a.Name(), snapshot.Instrument, score, rationale), nil
}

// fundamentalScore blends profitability, leverage and growth into [-1,1].
// ROE 40%, debt ratio 25%, net margin 20%, revenue growth 15%.
func fundamentalScore(f *contracts.Fundamentals) float64 {
	// ROE: 10% reads flat, 25% strongly positive, negative ROE negative
	roeScore := clampUnit((f.ROE - 10) / 15)

	// Debt ratio: 100% reads flat, low leverage positive
	debtScore := 0.0
	if f.DebtRatio >= 0 {
		debtScore = clampUnit((100 - f.DebtRatio) / 100)
	}

	// Net margin: 8% reads flat
	marginScore := clampUnit((f.NetMargin - 8) / 12)

	// Revenue growth: 5% YoY reads flat
	growthScore := clampUnit((f.RevenueGrowth - 5) / 20)

	return clampUnit(roeScore*0.4 + debtScore*0.25 + marginScore*0.2 + growthScore*0.15)
}
