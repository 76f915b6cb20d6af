// Package store persists frozen decision records and the portfolio
// state that lives across runs.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quorumtrade/quorum/internal/contracts"
)

// Repository implements contracts.DecisionStore on Postgres.
// Records are stored as JSONB; the portfolio is one row per
// instrument plus a cash row keyed by an empty instrument.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Postgres-backed decision store
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveRecord persists one frozen decision record
func (r *Repository) SaveRecord(ctx context.Context, record *contracts.DecisionRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", record.RunID, err)
	}

	query := `
		INSERT INTO decision_records (run_id, as_of, state, config_hash, failure_cause, payload, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO UPDATE SET
			state = EXCLUDED.state,
			failure_cause = EXCLUDED.failure_cause,
			payload = EXCLUDED.payload,
			finished_at = EXCLUDED.finished_at
	`

	_, err = r.pool.Exec(ctx, query,
		record.RunID, record.AsOf, string(record.State), record.ConfigHash,
		record.FailureCause, payload, record.StartedAt, record.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("save record %s: %w", record.RunID, err)
	}
	return nil
}

// GetRecord loads one record by run ID
func (r *Repository) GetRecord(ctx context.Context, runID string) (*contracts.DecisionRecord, error) {
	query := `SELECT payload FROM decision_records WHERE run_id = $1`

	var payload []byte
	err := r.pool.QueryRow(ctx, query, runID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", runID, err)
	}

	var record contracts.DecisionRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("unmarshal record %s: %w", runID, err)
	}
	return &record, nil
}

// RunSummary is one row of run history
type RunSummary struct {
	RunID      string    `json:"run_id"`
	AsOf       time.Time `json:"as_of"`
	State      string    `json:"state"`
	ConfigHash string    `json:"config_hash,omitempty"`
	Failure    string    `json:"failure_cause,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// ListRuns returns recent runs, newest first
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, as_of, state, config_hash, failure_cause, started_at, finished_at
		FROM decision_records
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.RunID, &s.AsOf, &s.State, &s.ConfigHash, &s.Failure, &s.StartedAt, &s.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// SavePortfolio replaces the stored portfolio with the given state.
// The write is transactional so a partially applied portfolio can
// never be observed.
func (r *Repository) SavePortfolio(ctx context.Context, state *contracts.PortfolioState) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin portfolio save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM portfolio_positions`); err != nil {
		return fmt.Errorf("clear positions: %w", err)
	}

	posQuery := `
		INSERT INTO portfolio_positions (instrument, shares, cost_basis)
		VALUES ($1, $2, $3)
	`
	for _, pos := range state.Positions {
		if _, err := tx.Exec(ctx, posQuery, pos.Instrument, pos.Shares, pos.CostBasis); err != nil {
			return fmt.Errorf("save position %s: %w", pos.Instrument, err)
		}
	}

	cashQuery := `
		INSERT INTO portfolio_cash (id, cash, updated_at)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET cash = EXCLUDED.cash, updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.Exec(ctx, cashQuery, state.Cash, state.UpdatedAt); err != nil {
		return fmt.Errorf("save cash: %w", err)
	}

	return tx.Commit(ctx)
}

// LoadPortfolio reads the stored portfolio. Returns nil when no
// portfolio has been saved yet.
func (r *Repository) LoadPortfolio(ctx context.Context) (*contracts.PortfolioState, error) {
	var state contracts.PortfolioState
	err := r.pool.QueryRow(ctx, `SELECT cash, updated_at FROM portfolio_cash WHERE id = 1`).
		Scan(&state.Cash, &state.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load cash: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT instrument, shares, cost_basis FROM portfolio_positions`)
	if err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}
	defer rows.Close()

	state.Positions = make(map[string]contracts.Position)
	for rows.Next() {
		var pos contracts.Position
		if err := rows.Scan(&pos.Instrument, &pos.Shares, &pos.CostBasis); err != nil {
			return nil, err
		}
		state.Positions[pos.Instrument] = pos
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &state, nil
}
