// Package jobs holds the concrete scheduled jobs wired into the scheduler.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/internal/engine"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// DecisionJob runs the full decision pipeline over the configured
// universe once per trading day, after market close.
type DecisionJob struct {
	engine   *engine.Engine
	universe []string
	logger   *logger.Logger
}

// NewDecisionJob creates the daily decision job.
func NewDecisionJob(eng *engine.Engine, universe []string, log *logger.Logger) *DecisionJob {
	return &DecisionJob{
		engine:   eng,
		universe: universe,
		logger:   log,
	}
}

// Name returns the job name.
func (j *DecisionJob) Name() string {
	return "daily_decision"
}

// Schedule returns the cron schedule (weekdays at 21:30, after US close).
func (j *DecisionJob) Schedule() string {
	return "0 30 21 * * 1-5"
}

// Run executes a decision run for today's date.
func (j *DecisionJob) Run(ctx context.Context) error {
	asOf := time.Now().UTC().Truncate(24 * time.Hour)

	j.logger.WithFields(map[string]interface{}{
		"as_of":       asOf.Format("2006-01-02"),
		"instruments": len(j.universe),
	}).Info("Starting scheduled decision run")

	record, err := j.engine.Run(ctx, j.universe, asOf)
	if err != nil {
		return fmt.Errorf("decision run: %w", err)
	}

	actions := 0
	for _, action := range record.Actions() {
		if action.Action != contracts.ActionHold {
			actions++
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":  record.RunID,
		"actions": actions,
	}).Info("Scheduled decision run completed")

	return nil
}
