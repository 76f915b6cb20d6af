package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/internal/metrics"
)

// fetchSnapshots pulls one snapshot per instrument. ErrDataUnavailable
// leaves a nil entry so the instrument abstains downstream; any other
// gateway error is fatal to the run.
func (e *Engine) fetchSnapshots(ctx context.Context, record *contracts.DecisionRecord) (map[string]*contracts.MarketSnapshot, error) {
	type fetched struct {
		instrument string
		snapshot   *contracts.MarketSnapshot
		err        error
	}

	sem := make(chan struct{}, e.workers)
	results := make(chan fetched, len(record.Instruments))
	var wg sync.WaitGroup
	for _, instrument := range record.Instruments {
		wg.Add(1)
		go func(instrument string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			snap, err := e.gateway.FetchSnapshot(ctx, instrument, record.AsOf, e.lookback)
			results <- fetched{instrument: instrument, snapshot: snap, err: err}
		}(instrument)
	}
	wg.Wait()
	close(results)

	snapshots := make(map[string]*contracts.MarketSnapshot, len(record.Instruments))
	for f := range results {
		switch {
		case f.err == nil:
			snapshots[f.instrument] = f.snapshot
		case errors.Is(f.err, contracts.ErrDataUnavailable):
			snapshots[f.instrument] = nil
		default:
			return nil, fmt.Errorf("fetch snapshot %s: %w", f.instrument, f.err)
		}
	}
	return snapshots, nil
}

// task is one (analyst, instrument) evaluation
type task struct {
	analyst    contracts.Analyst
	instrument string
	snapshot   *contracts.MarketSnapshot
}

// runAnalysts fans out one task per (analyst, instrument) to a fixed
// worker pool and folds the tagged results into the record. Every
// analyst runs against the same immutable snapshot, so scheduling
// order cannot change the outcome.
func (e *Engine) runAnalysts(ctx context.Context, record *contracts.DecisionRecord, snapshots map[string]*contracts.MarketSnapshot) error {
	tasks := make(chan task)
	results := make(chan contracts.AnalystResult)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				results <- evaluate(t)
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, instrument := range record.Instruments {
			for _, analyst := range e.analysts {
				t := task{analyst: analyst, instrument: instrument, snapshot: snapshots[instrument]}
				select {
				case tasks <- t:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var fatal error
	for res := range results {
		if err := e.record(record, res); err != nil && fatal == nil {
			fatal = err
		}
	}
	if fatal != nil {
		return fatal
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run cancelled: %w", err)
	}
	return nil
}

// evaluate runs one analyst task and tags the outcome
func evaluate(t task) contracts.AnalystResult {
	res := contracts.AnalystResult{
		Analyst:    t.analyst.Name(),
		Instrument: t.instrument,
	}

	if t.snapshot == nil {
		res.Abstained = true
		res.Reason = "market data unavailable"
		return res
	}

	sig, err := t.analyst.Evaluate(t.snapshot)
	switch {
	case err == nil:
		if sig == nil || !sig.Direction.Valid() || sig.Confidence < 0 || sig.Confidence > 1 {
			res.Err = fmt.Errorf("analyst %s produced an invalid signal for %s", res.Analyst, res.Instrument)
			return res
		}
		res.Signal = sig
	case contracts.IsAbstention(err):
		res.Abstained = true
		res.Reason = err.Error()
	default:
		res.Err = fmt.Errorf("analyst %s on %s: %w", res.Analyst, res.Instrument, err)
	}
	return res
}

// record folds one tagged result into the decision record
func (e *Engine) record(rec *contracts.DecisionRecord, res contracts.AnalystResult) error {
	switch {
	case res.Err != nil:
		return res.Err
	case res.Abstained:
		metrics.AnalystAbstentions.WithLabelValues(res.Analyst).Inc()
		e.emit(rec.RunID, "analyst", res.Analyst, res.Instrument, "abstained: "+res.Reason)
		return rec.AppendAbstention(res.Instrument, contracts.Abstention{Analyst: res.Analyst, Reason: res.Reason})
	default:
		metrics.AnalystSignals.WithLabelValues(res.Analyst, string(res.Signal.Direction)).Inc()
		e.emit(rec.RunID, "analyst", res.Analyst, res.Instrument, res.Signal.Rationale)
		return rec.AppendSignal(*res.Signal)
	}
}
