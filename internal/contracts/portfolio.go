package contracts

import "time"

// Position is one holding in the portfolio
type Position struct {
	Instrument string  `json:"instrument"`
	Shares     int64   `json:"shares"`
	CostBasis  float64 `json:"cost_basis"` // average price paid per share
}

// MarketValue returns the position value at the given price
func (p Position) MarketValue(price float64) float64 {
	return float64(p.Shares) * price
}

// PortfolioState is the only entity that lives across runs.
// It is mutated exclusively by the portfolio manager while the
// orchestrator serializes the deciding phase.
type PortfolioState struct {
	Cash      float64             `json:"cash"`
	Positions map[string]Position `json:"positions"`
	UpdatedAt time.Time           `json:"updated_at"`
}

// NewPortfolioState creates an empty portfolio with starting cash
func NewPortfolioState(cash float64) *PortfolioState {
	return &PortfolioState{
		Cash:      cash,
		Positions: make(map[string]Position),
	}
}

// Clone returns a deep copy. The portfolio manager works on a clone so
// a failed deciding phase leaves the live state untouched.
func (ps *PortfolioState) Clone() *PortfolioState {
	positions := make(map[string]Position, len(ps.Positions))
	for k, v := range ps.Positions {
		positions[k] = v
	}
	return &PortfolioState{
		Cash:      ps.Cash,
		Positions: positions,
		UpdatedAt: ps.UpdatedAt,
	}
}

// Exposure returns total market value of all positions, priced by the
// given price map. Positions without a quote fall back to cost basis.
func (ps *PortfolioState) Exposure(prices map[string]float64) float64 {
	var total float64
	for instrument, pos := range ps.Positions {
		price, ok := prices[instrument]
		if !ok {
			price = pos.CostBasis
		}
		total += pos.MarketValue(price)
	}
	return total
}

// Equity returns cash plus exposure
func (ps *PortfolioState) Equity(prices map[string]float64) float64 {
	return ps.Cash + ps.Exposure(prices)
}

// ActionType represents the final action for an instrument
type ActionType string

const (
	ActionBuy  ActionType = "BUY"
	ActionSell ActionType = "SELL"
	ActionHold ActionType = "HOLD"
)

// RiskAdjustedRecommendation is the risk manager's bounded sizing for
// one instrument. Shares and Notional never exceed the configured
// limits or available cash.
type RiskAdjustedRecommendation struct {
	Instrument string     `json:"instrument"`
	Action     ActionType `json:"action"`
	Shares     int64      `json:"shares"`
	Notional   float64    `json:"notional"`
	Price      float64    `json:"price"` // reference price used for sizing
	Rationale  string     `json:"rationale"`
}

// FinalAction is what the portfolio manager actually decided after
// sequential cash allocation.
type FinalAction struct {
	Instrument string     `json:"instrument"`
	Action     ActionType `json:"action"`
	Shares     int64      `json:"shares"`
	Price      float64    `json:"price"`
	Notional   float64    `json:"notional"`
	Reason     string     `json:"reason"`
}

// RiskLimits bounds position sizing. All percentages are fractions in (0,1].
type RiskLimits struct {
	RiskBudget          float64 `json:"risk_budget" yaml:"risk_budget"`                     // max fraction of cash per instrument
	MaxPositionNotional float64 `json:"max_position_notional" yaml:"max_position_notional"` // absolute cap per instrument
	MaxExposurePct      float64 `json:"max_exposure_pct" yaml:"max_exposure_pct"`           // max portfolio exposure / equity
	CashFloor           float64 `json:"cash_floor" yaml:"cash_floor"`                       // cash never drops below this
}

// Validate reports malformed limits via ConstraintViolationError.
// Called before any analyst runs (fail fast).
func (l RiskLimits) Validate() error {
	if l.RiskBudget <= 0 || l.RiskBudget > 1 {
		return &ConstraintViolationError{Field: "risk_budget", Reason: "must be in (0,1]"}
	}
	if l.MaxPositionNotional < 0 {
		return &ConstraintViolationError{Field: "max_position_notional", Reason: "must be non-negative"}
	}
	if l.MaxExposurePct <= 0 || l.MaxExposurePct > 1 {
		return &ConstraintViolationError{Field: "max_exposure_pct", Reason: "must be in (0,1]"}
	}
	if l.CashFloor < 0 {
		return &ConstraintViolationError{Field: "cash_floor", Reason: "must be non-negative"}
	}
	return nil
}

// ValidatePortfolio checks the portfolio state itself is well formed
func ValidatePortfolio(ps *PortfolioState) error {
	if ps == nil {
		return &ConstraintViolationError{Field: "portfolio", Reason: "missing portfolio state"}
	}
	if ps.Cash < 0 {
		return &ConstraintViolationError{Field: "cash", Reason: "negative cash balance"}
	}
	for instrument, pos := range ps.Positions {
		if pos.Shares < 0 {
			return &ConstraintViolationError{Field: "positions." + instrument, Reason: "negative share count"}
		}
	}
	return nil
}
