package contracts

import (
	"sort"
	"time"
)

// RunState is the orchestration graph's macro state
type RunState string

const (
	StateNotStarted        RunState = "NotStarted"
	StateAnalystsRunning   RunState = "AnalystsRunning"
	StateAggregating       RunState = "Aggregating"
	StateRiskAssessing     RunState = "RiskAssessing"
	StatePortfolioDeciding RunState = "PortfolioDeciding"
	StateCompleted         RunState = "Completed"
	StateFailed            RunState = "Failed"
)

// Terminal reports whether s is a terminal state
func (s RunState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// nextStates encodes the legal macro transitions. Failed is reachable
// from every non-terminal state.
var nextStates = map[RunState]RunState{
	StateNotStarted:        StateAnalystsRunning,
	StateAnalystsRunning:   StateAggregating,
	StateAggregating:       StateRiskAssessing,
	StateRiskAssessing:     StatePortfolioDeciding,
	StatePortfolioDeciding: StateCompleted,
}

// CanTransition reports whether from → to is a legal transition
func CanTransition(from, to RunState) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return nextStates[from] == to
}

// InstrumentDecision is the per-instrument audit trail within a run:
// raw signals → aggregated score → risk-bounded recommendation → final
// action, or an explicit exclusion marker.
type InstrumentDecision struct {
	Instrument      string                      `json:"instrument"`
	Signals         []Signal                    `json:"signals"`
	Abstentions     []Abstention                `json:"abstentions,omitempty"`
	Score           *AggregatedScore            `json:"score,omitempty"`
	Recommendation  *RiskAdjustedRecommendation `json:"recommendation,omitempty"`
	Action          *FinalAction                `json:"action,omitempty"`
	Excluded        bool                        `json:"excluded"`
	ExclusionReason string                      `json:"exclusion_reason,omitempty"`
}

// DecisionRecord is the append-only record threaded through one run.
// Each stage appends its output; Freeze() seals the record before it
// is handed to the persistence sink.
type DecisionRecord struct {
	RunID        string                         `json:"run_id"`
	AsOf         time.Time                      `json:"as_of"`
	Instruments  []string                       `json:"instruments"`
	ConfigHash   string                         `json:"config_hash,omitempty"`
	State        RunState                       `json:"state"`
	Decisions    map[string]*InstrumentDecision `json:"decisions"`
	StartedAt    time.Time                      `json:"started_at"`
	FinishedAt   time.Time                      `json:"finished_at,omitempty"`
	FailureCause string                         `json:"failure_cause,omitempty"`

	frozen bool
}

// NewDecisionRecord creates the record at run start. Instruments are
// stored sorted so every downstream iteration is deterministic.
func NewDecisionRecord(runID string, asOf time.Time, instruments []string) *DecisionRecord {
	sorted := make([]string, len(instruments))
	copy(sorted, instruments)
	sort.Strings(sorted)

	decisions := make(map[string]*InstrumentDecision, len(sorted))
	for _, instrument := range sorted {
		decisions[instrument] = &InstrumentDecision{Instrument: instrument}
	}

	return &DecisionRecord{
		RunID:       runID,
		AsOf:        asOf,
		Instruments: sorted,
		State:       StateNotStarted,
		Decisions:   decisions,
		StartedAt:   time.Now(),
	}
}

// Transition moves the record to the next macro state
func (r *DecisionRecord) Transition(to RunState) error {
	if r.frozen {
		return ErrRecordFrozen
	}
	if !CanTransition(r.State, to) {
		return &ConstraintViolationError{
			Field:  "state",
			Reason: string(r.State) + " cannot transition to " + string(to),
		}
	}
	r.State = to
	return nil
}

// AppendSignal records one analyst signal for an instrument
func (r *DecisionRecord) AppendSignal(sig Signal) error {
	if r.frozen {
		return ErrRecordFrozen
	}
	d, ok := r.Decisions[sig.Instrument]
	if !ok {
		return &ConstraintViolationError{Field: "instrument", Reason: sig.Instrument + " not in run scope"}
	}
	d.Signals = append(d.Signals, sig)
	return nil
}

// AppendAbstention records an analyst abstention for an instrument
func (r *DecisionRecord) AppendAbstention(instrument string, a Abstention) error {
	if r.frozen {
		return ErrRecordFrozen
	}
	d, ok := r.Decisions[instrument]
	if !ok {
		return &ConstraintViolationError{Field: "instrument", Reason: instrument + " not in run scope"}
	}
	d.Abstentions = append(d.Abstentions, a)
	return nil
}

// SetScore attaches the aggregated score for an instrument
func (r *DecisionRecord) SetScore(score *AggregatedScore) error {
	if r.frozen {
		return ErrRecordFrozen
	}
	d, ok := r.Decisions[score.Instrument]
	if !ok {
		return &ConstraintViolationError{Field: "instrument", Reason: score.Instrument + " not in run scope"}
	}
	d.Score = score
	return nil
}

// SetRecommendation attaches the risk-bounded recommendation
func (r *DecisionRecord) SetRecommendation(rec *RiskAdjustedRecommendation) error {
	if r.frozen {
		return ErrRecordFrozen
	}
	d, ok := r.Decisions[rec.Instrument]
	if !ok {
		return &ConstraintViolationError{Field: "instrument", Reason: rec.Instrument + " not in run scope"}
	}
	d.Recommendation = rec
	return nil
}

// SetAction attaches the final action
func (r *DecisionRecord) SetAction(action *FinalAction) error {
	if r.frozen {
		return ErrRecordFrozen
	}
	d, ok := r.Decisions[action.Instrument]
	if !ok {
		return &ConstraintViolationError{Field: "instrument", Reason: action.Instrument + " not in run scope"}
	}
	d.Action = action
	return nil
}

// Exclude marks an instrument as excluded with an explicit reason.
// Silent omission from the output is never acceptable.
func (r *DecisionRecord) Exclude(instrument, reason string) error {
	if r.frozen {
		return ErrRecordFrozen
	}
	d, ok := r.Decisions[instrument]
	if !ok {
		return &ConstraintViolationError{Field: "instrument", Reason: instrument + " not in run scope"}
	}
	d.Excluded = true
	d.ExclusionReason = reason
	return nil
}

// Freeze seals the record. All mutators fail with ErrRecordFrozen after this.
func (r *DecisionRecord) Freeze() {
	r.FinishedAt = time.Now()
	r.frozen = true
}

// Frozen reports whether the record has been sealed
func (r *DecisionRecord) Frozen() bool {
	return r.frozen
}

// Actions returns final actions in instrument order
func (r *DecisionRecord) Actions() []FinalAction {
	actions := make([]FinalAction, 0, len(r.Instruments))
	for _, instrument := range r.Instruments {
		if d := r.Decisions[instrument]; d.Action != nil {
			actions = append(actions, *d.Action)
		}
	}
	return actions
}

// ExcludedInstruments returns the instruments excluded from this run
func (r *DecisionRecord) ExcludedInstruments() []string {
	excluded := make([]string, 0)
	for _, instrument := range r.Instruments {
		if r.Decisions[instrument].Excluded {
			excluded = append(excluded, instrument)
		}
	}
	return excluded
}
