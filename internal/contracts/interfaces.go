package contracts

import (
	"context"
	"time"
)

// Analyst is one independent signal-producing stage. Evaluate must be
// a pure function of the snapshot: no hidden state, no cross-instrument
// leakage, so stages can run in any order or in parallel with identical
// results. An *InsufficientDataError return is an abstention, not a failure.
type Analyst interface {
	Name() string
	MinLookback() int
	Evaluate(snapshot *MarketSnapshot) (*Signal, error)
}

// MarketDataGateway supplies read-only market snapshots. Fails with
// ErrDataUnavailable when the provider has no data for the
// instrument/date; the orchestrator maps that to abstention.
type MarketDataGateway interface {
	FetchSnapshot(ctx context.Context, instrument string, asOf time.Time, lookbackDays int) (*MarketSnapshot, error)
}

// DecisionStore is the persistence sink. The engine only guarantees it
// hands over a fully formed, frozen record at Completed.
type DecisionStore interface {
	SaveRecord(ctx context.Context, record *DecisionRecord) error
	SavePortfolio(ctx context.Context, state *PortfolioState) error
	LoadPortfolio(ctx context.Context) (*PortfolioState, error)
}

// AuditEvent is one rationale emission on its way to the audit sink
type AuditEvent struct {
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	Analyst    string    `json:"analyst,omitempty"`
	Instrument string    `json:"instrument"`
	Rationale  string    `json:"rationale"`
	At         time.Time `json:"at"`
}

// AuditSink receives rationale events as they are produced.
// Best effort and non-blocking: a sink failure must never fail a run.
type AuditSink interface {
	Publish(event AuditEvent)
}
