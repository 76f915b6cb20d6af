// Package strategyconfig loads and validates the strategy parameters
// that shape a decision run: which analysts vote, with what weights,
// and under which risk limits. The loaded file is hashed so every
// DecisionRecord can name the exact configuration that produced it.
package strategyconfig

import (
	"time"

	"github.com/quorumtrade/quorum/internal/contracts"
)

// Config is the full strategy configuration
type Config struct {
	Meta      Meta                 `yaml:"meta" json:"meta"`
	Analysts  Analysts             `yaml:"analysts" json:"analysts"`
	Risk      contracts.RiskLimits `yaml:"risk" json:"risk"`
	Portfolio Portfolio            `yaml:"portfolio" json:"portfolio"`
	Universe  Universe             `yaml:"universe" json:"universe"`
}

// Meta identifies the strategy
type Meta struct {
	StrategyID string `yaml:"strategy_id" json:"strategy_id"`
	Version    string `yaml:"version" json:"version"`
}

// Analysts configures the voting panel. Weights are normalized at
// aggregation time; they only need to be positive here.
type Analysts struct {
	Weights  map[string]float64 `yaml:"weights" json:"weights"`
	Lookback int                `yaml:"lookback_days" json:"lookback_days"`
}

// Portfolio holds cross-run portfolio parameters
type Portfolio struct {
	InitialCash float64 `yaml:"initial_cash" json:"initial_cash"`
}

// Universe lists the instruments a scheduled run decides over
type Universe struct {
	Instruments []string `yaml:"instruments" json:"instruments"`
}

// DecisionSnapshot captures the configuration a run was made with,
// for reproducibility audits.
type DecisionSnapshot struct {
	ConfigHash string    `json:"config_hash"`
	ConfigYAML string    `json:"config_yaml"`
	StrategyID string    `json:"strategy_id"`
	CreatedAt  time.Time `json:"created_at"`
}
