package risk

import (
	"fmt"
	"math"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// Manager converts aggregated scores into bounded position sizing.
// Pure calculator: data assembly and run coordination live in the
// engine layer.
//
// The one safety invariant: the clamp is always the last step and is
// never exceeded for any input. Malformed configuration is the only
// error path; constrained-out recommendations degrade to zero size.
type Manager struct {
	logger *logger.Logger
}

// NewManager creates a new risk manager
func NewManager(log *logger.Logger) *Manager {
	return &Manager{logger: log}
}

// Assess sizes a position for one scored instrument. prices quotes the
// portfolio's instruments for exposure math; the scored instrument must
// be quoted or the recommendation degrades to hold.
func (m *Manager) Assess(
	score *contracts.AggregatedScore,
	prices map[string]float64,
	portfolio *contracts.PortfolioState,
	limits contracts.RiskLimits,
) (*contracts.RiskAdjustedRecommendation, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	if err := contracts.ValidatePortfolio(portfolio); err != nil {
		return nil, err
	}

	price, ok := prices[score.Instrument]
	if !ok || price <= 0 {
		return hold(score.Instrument, price, "no reference price"), nil
	}

	switch score.Direction {
	case contracts.Bullish:
		return m.assessBuy(score, price, prices, portfolio, limits), nil
	case contracts.Bearish:
		return m.assessSell(score, price, portfolio), nil
	default:
		return hold(score.Instrument, price, "neutral aggregate"), nil
	}
}

// assessBuy computes the raw target from magnitude and risk budget,
// then clamps. Clamping is the final step.
func (m *Manager) assessBuy(
	score *contracts.AggregatedScore,
	price float64,
	prices map[string]float64,
	portfolio *contracts.PortfolioState,
	limits contracts.RiskLimits,
) *contracts.RiskAdjustedRecommendation {
	raw := math.Abs(score.Magnitude) * limits.RiskBudget * portfolio.Cash

	// Per-instrument cap applies to the position after the trade
	positionHeadroom := math.Inf(1)
	if limits.MaxPositionNotional > 0 {
		existing := 0.0
		if pos, held := portfolio.Positions[score.Instrument]; held {
			existing = pos.MarketValue(price)
		}
		positionHeadroom = limits.MaxPositionNotional - existing
	}

	// Portfolio-level cap on total exposure after the trade
	equity := portfolio.Equity(prices)
	exposureHeadroom := limits.MaxExposurePct*equity - portfolio.Exposure(prices)

	// Cash cap, respecting the configured floor
	cashAvailable := portfolio.Cash - limits.CashFloor

	notional := raw
	for _, bound := range []float64{positionHeadroom, exposureHeadroom, cashAvailable} {
		if bound < notional {
			notional = bound
		}
	}
	if notional < 0 {
		notional = 0
	}

	shares := int64(math.Floor(notional / price))
	if shares <= 0 {
		return hold(score.Instrument, price, "constraints leave no room")
	}

	rec := &contracts.RiskAdjustedRecommendation{
		Instrument: score.Instrument,
		Action:     contracts.ActionBuy,
		Shares:     shares,
		Notional:   float64(shares) * price,
		Price:      price,
		Rationale: fmt.Sprintf(
			"magnitude %.2f, raw target %.2f, clamped to %.2f",
			score.Magnitude, raw, float64(shares)*price,
		),
	}

	m.logger.WithFields(map[string]interface{}{
		"instrument": rec.Instrument,
		"shares":     rec.Shares,
		"notional":   rec.Notional,
		"raw_target": raw,
	}).Debug("Sized buy recommendation")

	return rec
}

// assessSell scales the existing position down by score magnitude.
// Shorting is out of scope: with no position there is nothing to sell.
func (m *Manager) assessSell(
	score *contracts.AggregatedScore,
	price float64,
	portfolio *contracts.PortfolioState,
) *contracts.RiskAdjustedRecommendation {
	pos, held := portfolio.Positions[score.Instrument]
	if !held || pos.Shares == 0 {
		return hold(score.Instrument, price, "bearish with no position")
	}

	shares := int64(math.Floor(math.Abs(score.Magnitude) * float64(pos.Shares)))
	if shares <= 0 {
		return hold(score.Instrument, price, "sell size rounds to zero")
	}
	if shares > pos.Shares {
		shares = pos.Shares
	}

	return &contracts.RiskAdjustedRecommendation{
		Instrument: score.Instrument,
		Action:     contracts.ActionSell,
		Shares:     shares,
		Notional:   float64(shares) * price,
		Price:      price,
		Rationale:  fmt.Sprintf("magnitude %.2f, trimming %d of %d shares", score.Magnitude, shares, pos.Shares),
	}
}

func hold(instrument string, price float64, reason string) *contracts.RiskAdjustedRecommendation {
	return &contracts.RiskAdjustedRecommendation{
		Instrument: instrument,
		Action:     contracts.ActionHold,
		Shares:     0,
		Notional:   0,
		Price:      price,
		Rationale:  reason,
	}
}
