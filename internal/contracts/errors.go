package contracts

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the engine.
var (
	// ErrNoSignal means every analyst abstained for an instrument; the
	// instrument is excluded from the run, never defaulted to hold.
	ErrNoSignal = errors.New("no analyst signals for instrument")

	// ErrDataUnavailable is returned by gateways when the provider has
	// no data for the instrument/date. The orchestrator maps this to
	// analyst abstention.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrRecordFrozen guards the decision record after run completion.
	ErrRecordFrozen = errors.New("decision record is frozen")
)

// InsufficientDataError signals an analyst abstention: the snapshot
// does not cover the analyst's minimum lookback window.
type InsufficientDataError struct {
	Analyst string
	Need    int
	Got     int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need %d points, got %d", e.Analyst, e.Need, e.Got)
}

// ConstraintViolationError signals malformed limits or portfolio
// configuration. Fatal: surfaced to the caller before any analyst runs.
type ConstraintViolationError struct {
	Field  string
	Reason string
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint violation: %s: %s", e.Field, e.Reason)
}

// IsAbstention reports whether err is a recoverable abstention rather
// than a run-fatal failure.
func IsAbstention(err error) bool {
	var insufficient *InsufficientDataError
	if errors.As(err, &insufficient) {
		return true
	}
	return errors.Is(err, ErrDataUnavailable)
}
