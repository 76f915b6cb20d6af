package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// Manager turns risk-adjusted recommendations into final actions and
// applies them to the portfolio. Decide works instrument by
// instrument in sorted ID order against the state as updated within
// the run, so two instruments competing for the same cash resolve
// deterministically.
type Manager struct {
	logger *logger.Logger
}

// NewManager creates a new portfolio manager
func NewManager(log *logger.Logger) *Manager {
	return &Manager{logger: log}
}

// Decide allocates sequentially over a clone of the portfolio and
// returns the final actions plus the resulting state. The caller's
// state is never touched, so a failure mid-decision has no effect.
// The cash floor and exposure cap hold for the joint allocation, not
// just per recommendation: each buy is re-clamped against the state
// as updated by the buys before it.
func (m *Manager) Decide(
	recs map[string]*contracts.RiskAdjustedRecommendation,
	state *contracts.PortfolioState,
	limits contracts.RiskLimits,
) ([]contracts.FinalAction, *contracts.PortfolioState, error) {
	if err := limits.Validate(); err != nil {
		return nil, nil, err
	}
	if err := contracts.ValidatePortfolio(state); err != nil {
		return nil, nil, err
	}

	working := state.Clone()
	prices := referencePrices(recs)

	instruments := make([]string, 0, len(recs))
	for id := range recs {
		instruments = append(instruments, id)
	}
	sort.Strings(instruments)

	actions := make([]contracts.FinalAction, 0, len(instruments))
	for _, id := range instruments {
		rec := recs[id]
		if rec == nil {
			continue
		}

		action, err := m.apply(rec, working, limits, prices)
		if err != nil {
			return nil, nil, err
		}
		actions = append(actions, action)
	}

	working.UpdatedAt = time.Now().UTC()

	m.logger.WithFields(map[string]interface{}{
		"actions":   len(actions),
		"cash":      working.Cash,
		"positions": len(working.Positions),
	}).Info("Portfolio decisions finalized")

	return actions, working, nil
}

// apply commits one recommendation against the working state,
// downgrading to hold when the remaining headroom can no longer
// cover it.
func (m *Manager) apply(
	rec *contracts.RiskAdjustedRecommendation,
	working *contracts.PortfolioState,
	limits contracts.RiskLimits,
	prices map[string]float64,
) (contracts.FinalAction, error) {
	switch rec.Action {
	case contracts.ActionBuy:
		return m.applyBuy(rec, working, limits, prices), nil
	case contracts.ActionSell:
		return m.applySell(rec, working), nil
	case contracts.ActionHold:
		return holdAction(rec, rec.Rationale), nil
	default:
		return contracts.FinalAction{}, &contracts.ConstraintViolationError{
			Field:  "action",
			Reason: fmt.Sprintf("unknown action %q for %s", rec.Action, rec.Instrument),
		}
	}
}

func (m *Manager) applyBuy(
	rec *contracts.RiskAdjustedRecommendation,
	working *contracts.PortfolioState,
	limits contracts.RiskLimits,
	prices map[string]float64,
) contracts.FinalAction {
	if rec.Price <= 0 {
		return holdAction(rec, "no reference price")
	}

	// Earlier instruments may have consumed the headroom the risk
	// manager sized against. Re-fit against the working state: cash
	// above the floor, and exposure room at current prices.
	spendable := working.Cash - limits.CashFloor
	exposureRoom := limits.MaxExposurePct*working.Equity(prices) - working.Exposure(prices)

	notional := float64(rec.Shares) * rec.Price
	for _, bound := range []float64{spendable, exposureRoom} {
		if bound < 0 {
			bound = 0
		}
		if notional > bound {
			notional = bound
		}
	}

	shares := int64(math.Floor(notional / rec.Price))
	if shares <= 0 {
		return holdAction(rec, "no headroom after earlier allocations")
	}

	cost := float64(shares) * rec.Price
	working.Cash -= cost

	pos := working.Positions[rec.Instrument]
	totalShares := pos.Shares + shares
	pos.CostBasis = (float64(pos.Shares)*pos.CostBasis + cost) / float64(totalShares)
	pos.Shares = totalShares
	pos.Instrument = rec.Instrument
	working.Positions[rec.Instrument] = pos

	reason := rec.Rationale
	if shares < rec.Shares {
		reason = fmt.Sprintf("reduced from %d shares by remaining headroom", rec.Shares)
	}

	return contracts.FinalAction{
		Instrument: rec.Instrument,
		Action:     contracts.ActionBuy,
		Shares:     shares,
		Price:      rec.Price,
		Notional:   cost,
		Reason:     reason,
	}
}

func (m *Manager) applySell(
	rec *contracts.RiskAdjustedRecommendation,
	working *contracts.PortfolioState,
) contracts.FinalAction {
	pos, held := working.Positions[rec.Instrument]
	if !held || pos.Shares == 0 {
		return holdAction(rec, "no position to sell")
	}

	shares := rec.Shares
	if shares > pos.Shares {
		shares = pos.Shares
	}
	if shares <= 0 {
		return holdAction(rec, "sell size rounds to zero")
	}

	proceeds := float64(shares) * rec.Price
	working.Cash += proceeds

	pos.Shares -= shares
	if pos.Shares == 0 {
		delete(working.Positions, rec.Instrument)
	} else {
		working.Positions[rec.Instrument] = pos
	}

	return contracts.FinalAction{
		Instrument: rec.Instrument,
		Action:     contracts.ActionSell,
		Shares:     shares,
		Price:      rec.Price,
		Notional:   proceeds,
		Reason:     rec.Rationale,
	}
}

// referencePrices collects the recommendation prices so exposure is
// valued consistently through the deciding phase.
func referencePrices(recs map[string]*contracts.RiskAdjustedRecommendation) map[string]float64 {
	prices := make(map[string]float64, len(recs))
	for id, rec := range recs {
		if rec != nil && rec.Price > 0 {
			prices[id] = rec.Price
		}
	}
	return prices
}

func holdAction(rec *contracts.RiskAdjustedRecommendation, reason string) contracts.FinalAction {
	return contracts.FinalAction{
		Instrument: rec.Instrument,
		Action:     contracts.ActionHold,
		Shares:     0,
		Price:      rec.Price,
		Notional:   0,
		Reason:     reason,
	}
}
