package aggregate

import (
	"fmt"
	"math"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// Aggregator merges one instrument's analyst signals into a combined
// score using configured per-analyst weights. Fully deterministic: no
// randomness, no time-dependent tie-break.
type Aggregator struct {
	weights map[string]float64
	logger  *logger.Logger
}

// New creates an aggregator. Weights are normalized to sum to 1 across
// the configured analysts; non-positive weights are rejected.
func New(weights map[string]float64, log *logger.Logger) (*Aggregator, error) {
	if len(weights) == 0 {
		return nil, &contracts.ConstraintViolationError{Field: "weights", Reason: "no analyst weights configured"}
	}

	var total float64
	for name, w := range weights {
		if w < 0 {
			return nil, &contracts.ConstraintViolationError{
				Field:  "weights." + name,
				Reason: "weight must be non-negative",
			}
		}
		total += w
	}
	if total <= 0 {
		return nil, &contracts.ConstraintViolationError{Field: "weights", Reason: "weights must sum to a positive value"}
	}

	normalized := make(map[string]float64, len(weights))
	for name, w := range weights {
		normalized[name] = w / total
	}

	return &Aggregator{weights: normalized, logger: log}, nil
}

// Weights returns the normalized configured weights
func (a *Aggregator) Weights() map[string]float64 {
	out := make(map[string]float64, len(a.weights))
	for k, v := range a.weights {
		out[k] = v
	}
	return out
}

// Aggregate combines signals for one instrument. Signals from analysts
// without a configured weight are ignored. An absent analyst's weight
// is redistributed to the present ones proportional to their configured
// weights; if no weighted analyst reported, the instrument has no
// signal and aggregation fails with ErrNoSignal.
func (a *Aggregator) Aggregate(instrument string, signals []contracts.Signal) (*contracts.AggregatedScore, error) {
	present := make([]contracts.Signal, 0, len(signals))
	var presentWeight float64
	for _, sig := range signals {
		w, configured := a.weights[sig.Analyst]
		if !configured || w == 0 {
			continue
		}
		present = append(present, sig)
		presentWeight += w
	}

	if len(present) == 0 || presentWeight == 0 {
		return nil, fmt.Errorf("%w: %s", contracts.ErrNoSignal, instrument)
	}

	// Redistribution: dividing by the present analysts' total weight
	// scales each one up proportionally.
	effective := make(map[string]float64, len(present))
	var magnitude float64
	for _, sig := range present {
		w := a.weights[sig.Analyst] / presentWeight
		effective[sig.Analyst] = w
		magnitude += w * sig.Direction.Sign() * sig.Confidence
	}

	direction := contracts.Neutral
	switch {
	case magnitude > 0:
		direction = contracts.Bullish
	case magnitude < 0:
		direction = contracts.Bearish
	}

	contributing := make([]contracts.Signal, len(present))
	copy(contributing, present)

	score := &contracts.AggregatedScore{
		Instrument:   instrument,
		Direction:    direction,
		Magnitude:    clampMagnitude(magnitude),
		Contributing: contributing,
		Weights:      effective,
	}

	a.logger.WithFields(map[string]interface{}{
		"instrument": instrument,
		"signals":    len(present),
		"direction":  direction,
		"magnitude":  score.Magnitude,
	}).Debug("Aggregated analyst signals")

	return score, nil
}

func clampMagnitude(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
