package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorumtrade/quorum/internal/aggregate"
	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/internal/marketdata"
	"github.com/quorumtrade/quorum/internal/portfolio"
	"github.com/quorumtrade/quorum/internal/risk"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// fixedAnalyst always reports the same call
type fixedAnalyst struct {
	name       string
	direction  contracts.Direction
	confidence float64
}

func (a *fixedAnalyst) Name() string     { return a.name }
func (a *fixedAnalyst) MinLookback() int { return 1 }
func (a *fixedAnalyst) Evaluate(snap *contracts.MarketSnapshot) (*contracts.Signal, error) {
	return &contracts.Signal{
		Analyst:    a.name,
		Instrument: snap.Instrument,
		Direction:  a.direction,
		Confidence: a.confidence,
		Rationale:  "fixed call",
		CreatedAt:  time.Now(),
	}, nil
}

// abstainingAnalyst always abstains
type abstainingAnalyst struct{ name string }

func (a *abstainingAnalyst) Name() string     { return a.name }
func (a *abstainingAnalyst) MinLookback() int { return 1 }
func (a *abstainingAnalyst) Evaluate(snap *contracts.MarketSnapshot) (*contracts.Signal, error) {
	return nil, &contracts.InsufficientDataError{Analyst: a.name, Need: 100, Got: snap.PriceCount()}
}

// failingAnalyst fails on a chosen instrument
type failingAnalyst struct {
	name   string
	target string
}

func (a *failingAnalyst) Name() string     { return a.name }
func (a *failingAnalyst) MinLookback() int { return 1 }
func (a *failingAnalyst) Evaluate(snap *contracts.MarketSnapshot) (*contracts.Signal, error) {
	if snap.Instrument == a.target {
		return nil, fmt.Errorf("provider exploded")
	}
	return &contracts.Signal{
		Analyst:    a.name,
		Instrument: snap.Instrument,
		Direction:  contracts.Bullish,
		Confidence: 0.5,
		Rationale:  "ok",
		CreatedAt:  time.Now(),
	}, nil
}

// memStore is an in-memory DecisionStore
type memStore struct {
	mu        sync.Mutex
	records   []*contracts.DecisionRecord
	portfolio *contracts.PortfolioState
}

func (s *memStore) SaveRecord(ctx context.Context, record *contracts.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *memStore) SavePortfolio(ctx context.Context, state *contracts.PortfolioState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolio = state
	return nil
}

func (s *memStore) LoadPortfolio(ctx context.Context) (*contracts.PortfolioState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.portfolio, nil
}

// collectSink records audit events
type collectSink struct {
	mu     sync.Mutex
	events []contracts.AuditEvent
}

func (s *collectSink) Publish(event contracts.AuditEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *collectSink) byStage(stage string) []contracts.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []contracts.AuditEvent
	for _, e := range s.events {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

func fixtureGateway(instruments ...string) *marketdata.StaticGateway {
	g := marketdata.NewStaticGateway()
	for _, instrument := range instruments {
		prices := make([]contracts.PricePoint, 40)
		for i := range prices {
			prices[i] = contracts.PricePoint{
				Date:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
				Close: 100,
			}
		}
		g.Put(&contracts.MarketSnapshot{Instrument: instrument, Prices: prices})
	}
	return g
}

func testLimits() contracts.RiskLimits {
	return contracts.RiskLimits{
		RiskBudget:          0.5,
		MaxPositionNotional: 10000,
		MaxExposurePct:      1.0,
		CashFloor:           0,
	}
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	if cfg.Aggregator == nil {
		weights := make(map[string]float64)
		for _, a := range cfg.Analysts {
			weights[a.Name()] = 1
		}
		agg, err := aggregate.New(weights, logger.NewNop())
		require.NoError(t, err)
		cfg.Aggregator = agg
	}
	if cfg.Risk == nil {
		cfg.Risk = risk.NewManager(logger.NewNop())
	}
	if cfg.Portfolio == nil {
		cfg.Portfolio = portfolio.NewManager(logger.NewNop())
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Limits == (contracts.RiskLimits{}) {
		cfg.Limits = testLimits()
	}
	if cfg.InitialCash == 0 {
		cfg.InitialCash = 10000
	}
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestRunCompletesWithActions(t *testing.T) {
	store := &memStore{}
	sink := &collectSink{}
	e := newTestEngine(t, Config{
		Analysts: []contracts.Analyst{
			&fixedAnalyst{name: "alpha", direction: contracts.Bullish, confidence: 0.8},
			&fixedAnalyst{name: "beta", direction: contracts.Bullish, confidence: 0.6},
		},
		Gateway:    fixtureGateway("AAPL", "MSFT"),
		Store:      store,
		Audit:      sink,
		Workers:    4,
		ConfigHash: "abc123",
	})

	record, err := e.Run(context.Background(), []string{"MSFT", "AAPL"}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, contracts.StateCompleted, record.State)
	assert.True(t, record.Frozen())
	assert.Equal(t, "abc123", record.ConfigHash)
	assert.Equal(t, []string{"AAPL", "MSFT"}, record.Instruments)

	actions := record.Actions()
	require.Len(t, actions, 2)
	for _, action := range actions {
		assert.Equal(t, contracts.ActionBuy, action.Action)
		assert.Greater(t, action.Shares, int64(0))
	}

	// Every stage left a rationale trail
	assert.NotEmpty(t, sink.byStage("analyst"))
	assert.NotEmpty(t, sink.byStage("aggregate"))
	assert.NotEmpty(t, sink.byStage("risk"))
	assert.NotEmpty(t, sink.byStage("portfolio"))

	// Record and portfolio were persisted
	require.Len(t, store.records, 1)
	assert.True(t, store.records[0].Frozen())
	require.NotNil(t, store.portfolio)
	assert.Less(t, store.portfolio.Cash, 10000.0)
}

func TestRunParallelismDoesNotChangeOutcome(t *testing.T) {
	analysts := []contracts.Analyst{
		&fixedAnalyst{name: "alpha", direction: contracts.Bullish, confidence: 0.9},
		&fixedAnalyst{name: "beta", direction: contracts.Bearish, confidence: 0.4},
		&fixedAnalyst{name: "gamma", direction: contracts.Neutral, confidence: 0.5},
	}
	instruments := []string{"AAPL", "GOOG", "MSFT", "NVDA"}

	run := func(workers int) *contracts.DecisionRecord {
		e := newTestEngine(t, Config{
			Analysts: analysts,
			Gateway:  fixtureGateway(instruments...),
			Workers:  workers,
		})
		record, err := e.Run(context.Background(), instruments, time.Now())
		require.NoError(t, err)
		return record
	}

	sequential := run(1)
	parallel := run(8)

	for _, instrument := range instruments {
		seq := sequential.Decisions[instrument]
		par := parallel.Decisions[instrument]
		require.NotNil(t, seq.Score)
		require.NotNil(t, par.Score)
		assert.Equal(t, seq.Score.Direction, par.Score.Direction)
		assert.InDelta(t, seq.Score.Magnitude, par.Score.Magnitude, 1e-12)
		require.NotNil(t, seq.Action)
		require.NotNil(t, par.Action)
		assert.Equal(t, seq.Action.Shares, par.Action.Shares)
	}
}

func TestRunAnalystFailureFailsRun(t *testing.T) {
	store := &memStore{}
	e := newTestEngine(t, Config{
		Analysts: []contracts.Analyst{
			&fixedAnalyst{name: "alpha", direction: contracts.Bullish, confidence: 0.7},
			&failingAnalyst{name: "broken", target: "MSFT"},
		},
		Gateway: fixtureGateway("AAPL", "MSFT"),
		Store:   store,
	})

	record, err := e.Run(context.Background(), []string{"AAPL", "MSFT"}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider exploded")

	assert.Equal(t, contracts.StateFailed, record.State)
	assert.True(t, record.Frozen())
	assert.NotEmpty(t, record.FailureCause)

	// Failed records are saved too
	require.Len(t, store.records, 1)
	assert.Equal(t, contracts.StateFailed, store.records[0].State)
}

func TestRunAbstentionsExcludeNotFail(t *testing.T) {
	// AAPL has data, GHOST does not: GHOST's analysts all abstain and
	// the instrument is excluded with a reason while the run completes.
	e := newTestEngine(t, Config{
		Analysts: []contracts.Analyst{
			&fixedAnalyst{name: "alpha", direction: contracts.Bullish, confidence: 0.7},
		},
		Gateway: fixtureGateway("AAPL"),
	})

	record, err := e.Run(context.Background(), []string{"AAPL", "GHOST"}, time.Now())
	require.NoError(t, err)

	assert.Equal(t, contracts.StateCompleted, record.State)
	assert.Equal(t, []string{"GHOST"}, record.ExcludedInstruments())
	assert.Equal(t, "all analysts abstained", record.Decisions["GHOST"].ExclusionReason)
	require.Len(t, record.Decisions["GHOST"].Abstentions, 1)
	assert.NotNil(t, record.Decisions["AAPL"].Action)
}

func TestRunAllExcludedFails(t *testing.T) {
	e := newTestEngine(t, Config{
		Analysts: []contracts.Analyst{&abstainingAnalyst{name: "alpha"}},
		Gateway:  fixtureGateway("AAPL"),
	})

	record, err := e.Run(context.Background(), []string{"AAPL"}, time.Now())
	require.Error(t, err)
	assert.Equal(t, contracts.StateFailed, record.State)
	assert.Contains(t, record.FailureCause, "no instrument produced a decision")
}

func TestRunMalformedLimitsFailFast(t *testing.T) {
	e := newTestEngine(t, Config{
		Analysts: []contracts.Analyst{
			&fixedAnalyst{name: "alpha", direction: contracts.Bullish, confidence: 0.7},
		},
		Gateway: fixtureGateway("AAPL"),
		Limits:  contracts.RiskLimits{RiskBudget: 2.0, MaxExposurePct: 1.0},
	})

	record, err := e.Run(context.Background(), []string{"AAPL"}, time.Now())
	require.Error(t, err)

	var cv *contracts.ConstraintViolationError
	assert.True(t, errors.As(err, &cv))
	assert.Equal(t, contracts.StateFailed, record.State)

	// Failed before any analyst ran
	assert.Empty(t, record.Decisions["AAPL"].Signals)
}

func TestRunCancelledBeforeDecidingFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := newTestEngine(t, Config{
		Analysts: []contracts.Analyst{
			&fixedAnalyst{name: "alpha", direction: contracts.Bullish, confidence: 0.7},
		},
		Gateway: fixtureGateway("AAPL"),
	})

	record, err := e.Run(ctx, []string{"AAPL"}, time.Now())
	require.Error(t, err)
	assert.Equal(t, contracts.StateFailed, record.State)
}

func TestRunEmptyInstrumentsFails(t *testing.T) {
	e := newTestEngine(t, Config{
		Analysts: []contracts.Analyst{
			&fixedAnalyst{name: "alpha", direction: contracts.Bullish, confidence: 0.7},
		},
		Gateway: fixtureGateway(),
	})

	record, err := e.Run(context.Background(), nil, time.Now())
	require.Error(t, err)
	assert.Equal(t, contracts.StateFailed, record.State)
}

func TestRunRecordFrozenAfterCompletion(t *testing.T) {
	e := newTestEngine(t, Config{
		Analysts: []contracts.Analyst{
			&fixedAnalyst{name: "alpha", direction: contracts.Bullish, confidence: 0.7},
		},
		Gateway: fixtureGateway("AAPL"),
	})

	record, err := e.Run(context.Background(), []string{"AAPL"}, time.Now())
	require.NoError(t, err)

	err = record.AppendSignal(contracts.Signal{Instrument: "AAPL", Analyst: "late"})
	assert.ErrorIs(t, err, contracts.ErrRecordFrozen)
}

func TestRunUsesPersistedPortfolio(t *testing.T) {
	store := &memStore{portfolio: contracts.NewPortfolioState(500)}
	e := newTestEngine(t, Config{
		Analysts: []contracts.Analyst{
			&fixedAnalyst{name: "alpha", direction: contracts.Bullish, confidence: 1.0},
		},
		Gateway:     fixtureGateway("AAPL"),
		Store:       store,
		InitialCash: 99999,
	})

	record, err := e.Run(context.Background(), []string{"AAPL"}, time.Now())
	require.NoError(t, err)

	// Sizing came from the stored 500, not InitialCash
	action := record.Decisions["AAPL"].Action
	require.NotNil(t, action)
	assert.LessOrEqual(t, action.Notional, 500.0)
}
