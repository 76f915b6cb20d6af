package strategyconfig

import "fmt"

// ValidationError is a fatal configuration error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning flags a legal but questionable setting
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints, failing on the first
// violation. Runs at load time, before anything else starts.
func Validate(cfg *Config) error {
	if cfg.Meta.StrategyID == "" {
		return ValidationError{"meta.strategy_id", "required"}
	}

	if len(cfg.Analysts.Weights) == 0 {
		return ValidationError{"analysts.weights", "at least one analyst weight required"}
	}
	var sum float64
	for name, w := range cfg.Analysts.Weights {
		if w < 0 {
			return ValidationError{
				Field:   fmt.Sprintf("analysts.weights.%s", name),
				Message: "must be >= 0",
			}
		}
		sum += w
	}
	if sum <= 0 {
		return ValidationError{"analysts.weights", "weights must sum to a positive value"}
	}
	if cfg.Analysts.Lookback <= 0 {
		return ValidationError{"analysts.lookback_days", "must be > 0"}
	}

	if err := cfg.Risk.Validate(); err != nil {
		return ValidationError{"risk", err.Error()}
	}

	if cfg.Portfolio.InitialCash < 0 {
		return ValidationError{"portfolio.initial_cash", "must be >= 0"}
	}
	if cfg.Risk.CashFloor > cfg.Portfolio.InitialCash && cfg.Portfolio.InitialCash > 0 {
		return ValidationError{"risk.cash_floor", "exceeds initial cash"}
	}

	if len(cfg.Universe.Instruments) == 0 {
		return ValidationError{"universe.instruments", "at least one instrument required"}
	}
	seen := make(map[string]bool, len(cfg.Universe.Instruments))
	for i, instrument := range cfg.Universe.Instruments {
		if instrument == "" {
			return ValidationError{
				Field:   fmt.Sprintf("universe.instruments[%d]", i),
				Message: "must not be empty",
			}
		}
		if seen[instrument] {
			return ValidationError{
				Field:   fmt.Sprintf("universe.instruments[%d]", i),
				Message: fmt.Sprintf("duplicate instrument %s", instrument),
			}
		}
		seen[instrument] = true
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(cfg *Config) []Warning {
	var warnings []Warning

	if cfg.Risk.RiskBudget > 0.5 {
		warnings = append(warnings, Warning{
			Code:    "HIGH_RISK_BUDGET",
			Message: "risk budget above 50% of cash per instrument",
		})
	}

	if cfg.Risk.CashFloor == 0 {
		warnings = append(warnings, Warning{
			Code:    "NO_CASH_FLOOR",
			Message: "no cash floor configured, runs may fully invest",
		})
	}

	if len(cfg.Universe.Instruments) > 100 {
		warnings = append(warnings, Warning{
			Code:    "LARGE_UNIVERSE",
			Message: "more than 100 instruments per run, expect slow snapshot assembly",
		})
	}

	return warnings
}
