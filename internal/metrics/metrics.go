// Package metrics exposes the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quorum_runs_started_total",
		Help: "Decision runs started",
	})

	RunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quorum_runs_completed_total",
		Help: "Decision runs that reached Completed",
	})

	RunsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quorum_runs_failed_total",
		Help: "Decision runs that reached Failed",
	})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quorum_run_duration_seconds",
		Help:    "Wall time of a full decision run",
		Buckets: prometheus.DefBuckets,
	})

	AnalystSignals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_analyst_signals_total",
		Help: "Signals produced per analyst",
	}, []string{"analyst", "direction"})

	AnalystAbstentions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_analyst_abstentions_total",
		Help: "Abstentions per analyst",
	}, []string{"analyst"})

	InstrumentsExcluded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quorum_instruments_excluded_total",
		Help: "Instruments excluded from runs with no usable signal",
	})

	AuditEventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quorum_audit_events_dropped_total",
		Help: "Audit events dropped because the sink buffer was full",
	})
)
