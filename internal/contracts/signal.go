package contracts

import "time"

// Direction is an analyst's directional call
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// Sign maps a direction to its contribution sign
func (d Direction) Sign() float64 {
	switch d {
	case Bullish:
		return 1
	case Bearish:
		return -1
	default:
		return 0
	}
}

// Valid reports whether d is one of the three known directions
func (d Direction) Valid() bool {
	return d == Bullish || d == Bearish || d == Neutral
}

// Signal is a single analyst's opinion on one instrument for one run.
// Immutable once produced.
type Signal struct {
	Analyst    string    `json:"analyst"`
	Instrument string    `json:"instrument"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"` // [0,1]
	Rationale  string    `json:"rationale"`
	CreatedAt  time.Time `json:"created_at"`
}

// Abstention records an analyst's explicit non-opinion.
// Distinct from a failure: an abstention never fails the run.
type Abstention struct {
	Analyst string `json:"analyst"`
	Reason  string `json:"reason"`
}

// AnalystResult is the tagged outcome of one (analyst, instrument) task:
// exactly one of Signal, Abstained or Err is meaningful.
type AnalystResult struct {
	Analyst    string
	Instrument string
	Signal     *Signal
	Abstained  bool
	Reason     string // set when Abstained
	Err        error  // unexpected failure, fatal to the run
}

// AggregatedScore is the weighted combination of one instrument's signals.
// Magnitude is in [-1,1]: a weighted mean of confidences signed by
// direction, with weights renormalized over the analysts that reported.
type AggregatedScore struct {
	Instrument   string             `json:"instrument"`
	Direction    Direction          `json:"direction"`
	Magnitude    float64            `json:"magnitude"`
	Contributing []Signal           `json:"contributing"` // insertion order, for audit
	Weights      map[string]float64 `json:"weights"`      // effective weights after redistribution
}
