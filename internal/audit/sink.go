// Package audit carries rationale events out of the decision engine.
// The sink is buffered and never blocks a run: when the buffer is
// full, events are dropped and counted, not waited on.
package audit

import (
	"sync"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/internal/metrics"
	"github.com/quorumtrade/quorum/pkg/logger"
)

// Sink buffers audit events and fans them out to subscribers
type Sink struct {
	events chan contracts.AuditEvent
	done   chan struct{}
	logger *logger.Logger

	mu     sync.Mutex
	subs   map[int]chan contracts.AuditEvent
	nextID int
	closed bool
}

// NewSink creates a sink with the given buffer size and starts its
// dispatch loop.
func NewSink(buffer int, log *logger.Logger) *Sink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &Sink{
		events: make(chan contracts.AuditEvent, buffer),
		done:   make(chan struct{}),
		logger: log,
		subs:   make(map[int]chan contracts.AuditEvent),
	}
	go s.dispatch()
	return s
}

// Publish enqueues an event. Never blocks: a full buffer drops the
// event and increments the drop counter.
func (s *Sink) Publish(event contracts.AuditEvent) {
	select {
	case s.events <- event:
	default:
		metrics.AuditEventsDropped.Inc()
	}
}

// Subscribe registers a listener. The returned cancel function must be
// called to release the subscription. Slow subscribers miss events
// rather than slowing the sink down.
func (s *Sink) Subscribe() (<-chan contracts.AuditEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan contracts.AuditEvent, 64)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close stops the dispatch loop and closes all subscriptions
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
}

func (s *Sink) dispatch() {
	for {
		select {
		case event := <-s.events:
			s.deliver(event)
		case <-s.done:
			// Drain whatever is already buffered
			for {
				select {
				case event := <-s.events:
					s.deliver(event)
				default:
					s.closeSubs()
					return
				}
			}
		}
	}
}

func (s *Sink) deliver(event contracts.AuditEvent) {
	s.logger.WithFields(map[string]interface{}{
		"run_id":     event.RunID,
		"stage":      event.Stage,
		"analyst":    event.Analyst,
		"instrument": event.Instrument,
		"rationale":  event.Rationale,
	}).Debug("Audit event")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

func (s *Sink) closeSubs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		delete(s.subs, id)
		close(sub)
	}
}
