// Package engine coordinates one decision run end to end:
// snapshot fetch, parallel analyst evaluation, aggregation, risk
// sizing and the final portfolio decision, all recorded on a single
// DecisionRecord that is frozen and persisted at the end.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quorumtrade/quorum/internal/aggregate"
	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/internal/metrics"
	"github.com/quorumtrade/quorum/internal/portfolio"
	"github.com/quorumtrade/quorum/internal/risk"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// Config wires the engine's collaborators
type Config struct {
	Analysts    []contracts.Analyst
	Aggregator  *aggregate.Aggregator
	Risk        *risk.Manager
	Portfolio   *portfolio.Manager
	Gateway     contracts.MarketDataGateway
	Store       contracts.DecisionStore // optional
	Audit       contracts.AuditSink     // optional
	Limits      contracts.RiskLimits
	Workers     int
	Lookback    int     // snapshot lookback in days
	InitialCash float64 // used when no persisted portfolio exists
	ConfigHash  string
	Logger      *logger.Logger
}

// Engine runs the decision pipeline
type Engine struct {
	analysts   []contracts.Analyst
	aggregator *aggregate.Aggregator
	risk       *risk.Manager
	portfolio  *portfolio.Manager
	gateway    contracts.MarketDataGateway
	store      contracts.DecisionStore
	audit      contracts.AuditSink
	limits     contracts.RiskLimits
	workers    int
	lookback   int
	initCash   float64
	configHash string
	logger     *logger.Logger
}

// New creates an engine, validating the wiring
func New(cfg Config) (*Engine, error) {
	if len(cfg.Analysts) == 0 {
		return nil, fmt.Errorf("engine: no analysts configured")
	}
	if cfg.Aggregator == nil || cfg.Risk == nil || cfg.Portfolio == nil {
		return nil, fmt.Errorf("engine: missing pipeline stage")
	}
	if cfg.Gateway == nil {
		return nil, fmt.Errorf("engine: missing market data gateway")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("engine: missing logger")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 120
	}

	return &Engine{
		analysts:   cfg.Analysts,
		aggregator: cfg.Aggregator,
		risk:       cfg.Risk,
		portfolio:  cfg.Portfolio,
		gateway:    cfg.Gateway,
		store:      cfg.Store,
		audit:      cfg.Audit,
		limits:     cfg.Limits,
		workers:    cfg.Workers,
		lookback:   cfg.Lookback,
		initCash:   cfg.InitialCash,
		configHash: cfg.ConfigHash,
		logger:     cfg.Logger,
	}, nil
}

// Run executes one decision run over the given instruments. The
// returned record is always frozen, in Completed or Failed state.
//
// Cancellation is honored between stages and during analyst fan-out,
// but never once PortfolioDeciding has begun: the deciding phase
// either commits in full or the run fails before it starts.
func (e *Engine) Run(ctx context.Context, instruments []string, asOf time.Time) (*contracts.DecisionRecord, error) {
	started := time.Now()
	record := contracts.NewDecisionRecord(uuid.NewString(), asOf, instruments)
	record.ConfigHash = e.configHash

	metrics.RunsStarted.Inc()
	e.logger.WithFields(map[string]interface{}{
		"run_id":      record.RunID,
		"as_of":       asOf.Format("2006-01-02"),
		"instruments": len(record.Instruments),
		"analysts":    len(e.analysts),
	}).Info("Starting decision run")

	if len(record.Instruments) == 0 {
		return e.fail(ctx, record, fmt.Errorf("no instruments in run scope"))
	}
	// Malformed limits fail before any analyst runs
	if err := e.limits.Validate(); err != nil {
		return e.fail(ctx, record, err)
	}

	state, err := e.loadPortfolio(ctx)
	if err != nil {
		return e.fail(ctx, record, fmt.Errorf("load portfolio: %w", err))
	}

	// Analyst fan-out
	if err := record.Transition(contracts.StateAnalystsRunning); err != nil {
		return e.fail(ctx, record, err)
	}
	snapshots, err := e.fetchSnapshots(ctx, record)
	if err != nil {
		return e.fail(ctx, record, err)
	}
	if err := e.runAnalysts(ctx, record, snapshots); err != nil {
		return e.fail(ctx, record, err)
	}

	// Aggregation
	if err := record.Transition(contracts.StateAggregating); err != nil {
		return e.fail(ctx, record, err)
	}
	scores, err := e.aggregateAll(ctx, record)
	if err != nil {
		return e.fail(ctx, record, err)
	}
	if len(scores) == 0 {
		return e.fail(ctx, record, fmt.Errorf("no instrument produced a decision"))
	}

	// Risk sizing
	if err := record.Transition(contracts.StateRiskAssessing); err != nil {
		return e.fail(ctx, record, err)
	}
	recs, err := e.assessAll(ctx, record, scores, snapshots, state)
	if err != nil {
		return e.fail(ctx, record, err)
	}

	// Final decision. Atomic: no cancellation check past this point.
	if err := ctx.Err(); err != nil {
		return e.fail(ctx, record, fmt.Errorf("run cancelled: %w", err))
	}
	if err := record.Transition(contracts.StatePortfolioDeciding); err != nil {
		return e.fail(ctx, record, err)
	}
	actions, nextState, err := e.portfolio.Decide(recs, state, e.limits)
	if err != nil {
		return e.fail(ctx, record, err)
	}
	if len(actions) == 0 {
		return e.fail(ctx, record, fmt.Errorf("no final actions produced"))
	}
	for i := range actions {
		if err := record.SetAction(&actions[i]); err != nil {
			return e.fail(ctx, record, err)
		}
		e.emit(record.RunID, "portfolio", "", actions[i].Instrument,
			fmt.Sprintf("%s %d @ %.2f: %s", actions[i].Action, actions[i].Shares, actions[i].Price, actions[i].Reason))
	}

	if err := record.Transition(contracts.StateCompleted); err != nil {
		return e.fail(ctx, record, err)
	}
	record.Freeze()

	if err := e.persist(ctx, record, nextState); err != nil {
		return record, err
	}

	metrics.RunsCompleted.Inc()
	metrics.RunDuration.Observe(time.Since(started).Seconds())
	e.logger.WithFields(map[string]interface{}{
		"run_id":   record.RunID,
		"actions":  len(actions),
		"excluded": len(record.ExcludedInstruments()),
		"duration": time.Since(started).Seconds(),
	}).Info("Decision run completed")

	return record, nil
}

func (e *Engine) loadPortfolio(ctx context.Context) (*contracts.PortfolioState, error) {
	if e.store == nil {
		return contracts.NewPortfolioState(e.initCash), nil
	}
	state, err := e.store.LoadPortfolio(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = contracts.NewPortfolioState(e.initCash)
	}
	return state, nil
}

// aggregateAll combines each instrument's signals, excluding
// instruments where every analyst abstained.
func (e *Engine) aggregateAll(ctx context.Context, record *contracts.DecisionRecord) (map[string]*contracts.AggregatedScore, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled: %w", err)
	}

	scores := make(map[string]*contracts.AggregatedScore)
	for _, instrument := range record.Instruments {
		decision := record.Decisions[instrument]
		score, err := e.aggregator.Aggregate(instrument, decision.Signals)
		if err != nil {
			if errors.Is(err, contracts.ErrNoSignal) {
				if exErr := record.Exclude(instrument, "all analysts abstained"); exErr != nil {
					return nil, exErr
				}
				metrics.InstrumentsExcluded.Inc()
				e.emit(record.RunID, "aggregate", "", instrument, "excluded: all analysts abstained")
				continue
			}
			return nil, fmt.Errorf("aggregate %s: %w", instrument, err)
		}
		if err := record.SetScore(score); err != nil {
			return nil, err
		}
		scores[instrument] = score
		e.emit(record.RunID, "aggregate", "", instrument,
			fmt.Sprintf("%s magnitude %.3f from %d signals", score.Direction, score.Magnitude, len(score.Contributing)))
	}
	return scores, nil
}

// assessAll sizes every scored instrument against the shared
// portfolio state. Sizing is read-only here; cash is not consumed
// until the deciding phase.
func (e *Engine) assessAll(
	ctx context.Context,
	record *contracts.DecisionRecord,
	scores map[string]*contracts.AggregatedScore,
	snapshots map[string]*contracts.MarketSnapshot,
	state *contracts.PortfolioState,
) (map[string]*contracts.RiskAdjustedRecommendation, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled: %w", err)
	}

	prices := referencePrices(snapshots)
	recs := make(map[string]*contracts.RiskAdjustedRecommendation, len(scores))
	for _, instrument := range record.Instruments {
		score, ok := scores[instrument]
		if !ok {
			continue
		}
		rec, err := e.risk.Assess(score, prices, state, e.limits)
		if err != nil {
			return nil, fmt.Errorf("assess %s: %w", instrument, err)
		}
		if err := record.SetRecommendation(rec); err != nil {
			return nil, err
		}
		recs[instrument] = rec
		e.emit(record.RunID, "risk", "", instrument, rec.Rationale)
	}
	return recs, nil
}

// persist hands the frozen record and the new portfolio state to the
// store. A persistence failure surfaces to the caller but the run
// itself already completed.
func (e *Engine) persist(ctx context.Context, record *contracts.DecisionRecord, state *contracts.PortfolioState) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.SaveRecord(ctx, record); err != nil {
		return fmt.Errorf("save decision record: %w", err)
	}
	if err := e.store.SavePortfolio(ctx, state); err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	return nil
}

// fail moves the record to Failed, freezes it and best-effort saves it
func (e *Engine) fail(ctx context.Context, record *contracts.DecisionRecord, cause error) (*contracts.DecisionRecord, error) {
	if !record.State.Terminal() {
		_ = record.Transition(contracts.StateFailed)
	}
	record.FailureCause = cause.Error()
	record.Freeze()

	metrics.RunsFailed.Inc()
	e.logger.WithError(cause).WithField("run_id", record.RunID).Error("Decision run failed")

	if e.store != nil {
		if err := e.store.SaveRecord(ctx, record); err != nil {
			e.logger.WithError(err).Warn("Could not save failed run record")
		}
	}
	return record, cause
}

func (e *Engine) emit(runID, stage, analyst, instrument, rationale string) {
	if e.audit == nil {
		return
	}
	e.audit.Publish(contracts.AuditEvent{
		RunID:      runID,
		Stage:      stage,
		Analyst:    analyst,
		Instrument: instrument,
		Rationale:  rationale,
		At:         time.Now(),
	})
}

// referencePrices extracts the latest close per instrument
func referencePrices(snapshots map[string]*contracts.MarketSnapshot) map[string]float64 {
	prices := make(map[string]float64, len(snapshots))
	for instrument, snap := range snapshots {
		if snap == nil {
			continue
		}
		if close, ok := snap.LastClose(); ok {
			prices[instrument] = close
		}
	}
	return prices
}
