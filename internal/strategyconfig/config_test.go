package strategyconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
meta:
  strategy_id: quorum-default
  version: "1.0"
analysts:
  lookback_days: 120
  weights:
    fundamentals: 0.3
    technicals: 0.3
    sentiment: 0.2
    valuation: 0.2
risk:
  risk_budget: 0.2
  max_position_notional: 25000
  max_exposure_pct: 0.9
  cash_floor: 1000
portfolio:
  initial_cash: 100000
universe:
  instruments: [AAPL, MSFT, NVDA]
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	cfg, raw, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.NotEmpty(t, raw)

	assert.Equal(t, "quorum-default", cfg.Meta.StrategyID)
	assert.Equal(t, 120, cfg.Analysts.Lookback)
	assert.InDelta(t, 0.3, cfg.Analysts.Weights["fundamentals"], 1e-9)
	assert.InDelta(t, 0.2, cfg.Risk.RiskBudget, 1e-9)
	assert.Equal(t, []string{"AAPL", "MSFT", "NVDA"}, cfg.Universe.Instruments)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	bad := validYAML + "\nnot_a_field: true\n"
	_, _, err := Load(writeConfig(t, bad))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load("/nonexistent/strategy.yaml")
	require.Error(t, err)
}

func TestValidateRejections(t *testing.T) {
	base := func() *Config {
		cfg, _, err := Load(writeConfig(t, validYAML))
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing strategy id", func(c *Config) { c.Meta.StrategyID = "" }, "meta.strategy_id"},
		{"no weights", func(c *Config) { c.Analysts.Weights = nil }, "analysts.weights"},
		{"negative weight", func(c *Config) { c.Analysts.Weights["technicals"] = -0.1 }, "analysts.weights.technicals"},
		{"zero weight sum", func(c *Config) {
			for k := range c.Analysts.Weights {
				c.Analysts.Weights[k] = 0
			}
		}, "analysts.weights"},
		{"bad lookback", func(c *Config) { c.Analysts.Lookback = 0 }, "analysts.lookback_days"},
		{"bad risk budget", func(c *Config) { c.Risk.RiskBudget = 1.5 }, "risk"},
		{"negative cash", func(c *Config) { c.Portfolio.InitialCash = -1 }, "portfolio.initial_cash"},
		{"empty universe", func(c *Config) { c.Universe.Instruments = nil }, "universe.instruments"},
		{"duplicate instrument", func(c *Config) {
			c.Universe.Instruments = []string{"AAPL", "AAPL"}
		}, "universe.instruments[1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			var ve ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestHashIsStable(t *testing.T) {
	cfg1, _, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	cfg2, _, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	h1, err := Hash(cfg1)
	require.NoError(t, err)
	h2, err := Hash(cfg2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestHashChangesWithConfig(t *testing.T) {
	cfg, _, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	h1, err := Hash(cfg)
	require.NoError(t, err)

	cfg.Risk.RiskBudget = 0.3
	h2, err := Hash(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestWarnFlagsAggressiveSettings(t *testing.T) {
	cfg, _, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Risk.RiskBudget = 0.8
	cfg.Risk.CashFloor = 0

	warnings := Warn(cfg)
	codes := make([]string, 0, len(warnings))
	for _, w := range warnings {
		codes = append(codes, w.Code)
	}
	assert.Contains(t, codes, "HIGH_RISK_BUDGET")
	assert.Contains(t, codes, "NO_CASH_FLOOR")
}

func TestNewDecisionSnapshot(t *testing.T) {
	cfg, raw, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	snap, err := NewDecisionSnapshot(cfg, raw)
	require.NoError(t, err)
	assert.Equal(t, "quorum-default", snap.StrategyID)
	assert.Len(t, snap.ConfigHash, 64)
	assert.Equal(t, string(raw), snap.ConfigYAML)
}
