package analysts

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// Analyst names. Weight configuration refers to analysts by these names.
const (
	NameFundamentals = "fundamentals"
	NameTechnicals   = "technicals"
	NameSentiment    = "sentiment"
	NameValuation    = "valuation"
)

// Registry maps analyst names to implementations so runs can be
// configured by name.
type Registry struct {
	analysts map[string]contracts.Analyst
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{analysts: make(map[string]contracts.Analyst)}
}

// DefaultRegistry returns a registry with the four reference analysts
func DefaultRegistry(log *logger.Logger) *Registry {
	r := NewRegistry()
	r.Register(NewFundamentalsAnalyst(log))
	r.Register(NewTechnicalsAnalyst(log))
	r.Register(NewSentimentAnalyst(log))
	r.Register(NewValuationAnalyst(log))
	return r
}

// Register adds an analyst. Later registrations replace earlier ones.
func (r *Registry) Register(a contracts.Analyst) {
	r.analysts[a.Name()] = a
}

// Get returns the analyst registered under name
func (r *Registry) Get(name string) (contracts.Analyst, bool) {
	a, ok := r.analysts[name]
	return a, ok
}

// Names returns registered analyst names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.analysts))
	for name := range r.analysts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select resolves the named analysts, failing on unknown names
func (r *Registry) Select(names []string) ([]contracts.Analyst, error) {
	selected := make([]contracts.Analyst, 0, len(names))
	for _, name := range names {
		a, ok := r.analysts[name]
		if !ok {
			return nil, fmt.Errorf("unknown analyst: %s", name)
		}
		selected = append(selected, a)
	}
	return selected, nil
}

// directionalBand is the score band treated as neutral
const directionalBand = 0.05

// signalFromScore converts a scalar score in [-1,1] into a Signal.
// Scores inside the neutral band produce a neutral call at moderate
// confidence; outside it, confidence tracks score magnitude.
func signalFromScore(analyst, instrument string, score float64, rationale string) *contracts.Signal {
	direction := contracts.Neutral
	confidence := clamp01(math.Abs(score))

	switch {
	case score > directionalBand:
		direction = contracts.Bullish
	case score < -directionalBand:
		direction = contracts.Bearish
	default:
		confidence = 0.5
	}

	return &contracts.Signal{
		Analyst:    analyst,
		Instrument: instrument,
		Direction:  direction,
		Confidence: confidence,
		Rationale:  rationale,
		CreatedAt:  time.Now(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func clampUnit(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
