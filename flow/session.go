package flow

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Session tracks the cumulative counters of one end-to-end transfer. It is
// created when the transfer starts and its counters are discarded with it
// when the session resolves or fails.
type Session struct {
	id    string
	start time.Time

	produced     atomic.Int64
	consumed     atomic.Int64
	backpressure atomic.Int64
}

// NewSession starts a session with a fresh ID.
func NewSession() *Session {
	return &Session{
		id:    uuid.NewString(),
		start: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Elapsed returns the time since the session started.
func (s *Session) Elapsed() time.Duration { return time.Since(s.start) }

// AddProduced adds n to the produced-byte counter and returns the new total.
func (s *Session) AddProduced(n int64) int64 { return s.produced.Add(n) }

// Produced returns total bytes produced by the source.
func (s *Session) Produced() int64 { return s.produced.Load() }

// SetConsumed records total bytes consumed by the terminal sink.
func (s *Session) SetConsumed(n int64) { s.consumed.Store(n) }

// Consumed returns total bytes consumed by the terminal sink.
func (s *Session) Consumed() int64 { return s.consumed.Load() }

// IncBackpressure increments the backpressure-event counter and returns the
// new count.
func (s *Session) IncBackpressure() int64 { return s.backpressure.Add(1) }

// Backpressure returns the backpressure-event count.
func (s *Session) Backpressure() int64 { return s.backpressure.Load() }
