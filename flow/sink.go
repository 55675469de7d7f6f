package flow

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultHighWater is the default buffered-byte threshold (256 KB).
const DefaultHighWater = 256 * 1024

// SinkConfig configures the capacity thresholds of a sink.
type SinkConfig struct {
	// HighWater is the buffered-byte count above which Accept reports
	// saturation (default: DefaultHighWater).
	HighWater int64
	// LowWater is the buffered-byte count at or below which a saturated
	// sink signals drained (default: HighWater).
	LowWater int64
}

// Sink accepts chunks into a bounded buffer and flushes them to a
// WriteResource from its own flusher goroutine.
//
// Accept is write-then-signal: the chunk that trips the high-water mark is
// still buffered, so buffered bytes exceed the threshold by at most one
// chunk. Once saturated the sink takes no further chunks until it has
// drained to the low-water mark and signalled exactly one drained
// notification.
type Sink struct {
	w         WriteResource
	highWater int64
	lowWater  int64

	mu         sync.Mutex
	queue      []Chunk
	buffered   int64
	peak       int64
	saturated  bool
	finishing  bool
	terminated bool
	termErr    error

	wake      chan struct{}
	quit      chan struct{}
	drained   chan struct{}
	failed    chan error
	flushDone chan struct{}

	termOnce  sync.Once
	closeOnce sync.Once
	closeErr  error
	consumed  atomic.Int64
}

// NewSink wraps a write resource and starts the flusher.
func NewSink(w WriteResource, cfg SinkConfig) *Sink {
	if cfg.HighWater <= 0 {
		cfg.HighWater = DefaultHighWater
	}
	if cfg.LowWater <= 0 || cfg.LowWater > cfg.HighWater {
		cfg.LowWater = cfg.HighWater
	}
	s := &Sink{
		w:         w,
		highWater: cfg.HighWater,
		lowWater:  cfg.LowWater,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		drained:   make(chan struct{}, 1),
		failed:    make(chan error, 1),
		flushDone: make(chan struct{}),
	}
	go s.flusher()
	return s
}

// Accept buffers c and reports whether the write saturated the sink.
// Accepting into an already saturated sink is a protocol violation.
func (s *Sink) Accept(c Chunk) (bool, error) {
	s.mu.Lock()
	if s.terminated {
		err := s.termErr
		s.mu.Unlock()
		if err == nil {
			err = fmt.Errorf("%w: accept after terminal state", ErrSinkWrite)
		}
		return false, err
	}
	if s.finishing {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: accept after finish", ErrProtocolViolation)
	}
	if s.saturated {
		s.mu.Unlock()
		return true, fmt.Errorf("%w: accept while saturated", ErrProtocolViolation)
	}
	s.queue = append(s.queue, c)
	s.buffered += c.Len()
	if s.buffered > s.peak {
		s.peak = s.buffered
	}
	sat := false
	if s.buffered > s.highWater {
		s.saturated = true
		sat = true
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return sat, nil
}

// Drained delivers one notification per saturation period.
func (s *Sink) Drained() <-chan struct{} { return s.drained }

// Failed delivers asynchronous flush failures.
func (s *Sink) Failed() <-chan error { return s.failed }

// Finish flushes every buffered chunk, closes the resource, and transitions
// to terminal success. Idempotent; if Abort won the race, Finish reports the
// abort error instead.
func (s *Sink) Finish() error {
	s.termOnce.Do(func() {
		s.mu.Lock()
		s.finishing = true
		s.mu.Unlock()
		select {
		case s.wake <- struct{}{}:
		default:
		}
		<-s.flushDone
		s.closeOnce.Do(func() { s.closeErr = s.w.Close() })
		s.mu.Lock()
		s.terminated = true
		if s.termErr == nil && s.closeErr != nil {
			s.termErr = fmt.Errorf("%w: close: %v", ErrSinkWrite, s.closeErr)
		}
		s.mu.Unlock()
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.termErr
}

// Abort discards unflushed chunks, closes the resource, and transitions to
// terminal failure. Idempotent; a no-op if Finish won the race.
func (s *Sink) Abort(err error) {
	s.termOnce.Do(func() {
		s.mu.Lock()
		s.terminated = true
		if s.termErr == nil {
			if err == nil {
				err = fmt.Errorf("%w: aborted", ErrSinkWrite)
			}
			s.termErr = err
		}
		s.queue = nil
		s.mu.Unlock()
		close(s.quit)
		// Closing the resource may unblock a flusher stuck in Write.
		s.closeOnce.Do(func() { s.closeErr = s.w.Close() })
	})
}

// Consumed returns total bytes flushed to the resource.
func (s *Sink) Consumed() int64 { return s.consumed.Load() }

// Buffered returns bytes accepted but not yet flushed.
func (s *Sink) Buffered() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buffered
}

// PeakBuffered returns the highest buffered-byte count observed.
func (s *Sink) PeakBuffered() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}

// Saturated reports whether the sink is currently saturated.
func (s *Sink) Saturated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saturated
}

func (s *Sink) flusher() {
	defer close(s.flushDone)
	for {
		s.mu.Lock()
		if s.terminated {
			s.queue = nil
			s.mu.Unlock()
			return
		}
		if len(s.queue) == 0 {
			if s.finishing {
				s.mu.Unlock()
				return
			}
			s.mu.Unlock()
			select {
			case <-s.wake:
			case <-s.quit:
			}
			continue
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if !c.Verify() {
			s.fail(fmt.Errorf("%w: chunk %d", ErrIntegrity, c.Seq))
			return
		}
		if err := s.w.Write(c.Data); err != nil {
			s.fail(fmt.Errorf("%w: %v", ErrSinkWrite, err))
			return
		}
		s.consumed.Add(c.Len())

		s.mu.Lock()
		s.buffered -= c.Len()
		if s.saturated && s.buffered <= s.lowWater {
			s.saturated = false
			select {
			case s.drained <- struct{}{}:
			default:
			}
		}
		s.mu.Unlock()
	}
}

// fail records the first flush failure, releases the resource, and notifies
// the bridge. The flusher exits after calling it.
func (s *Sink) fail(err error) {
	s.mu.Lock()
	s.terminated = true
	if s.termErr == nil {
		s.termErr = err
	}
	s.queue = nil
	s.mu.Unlock()
	s.closeOnce.Do(func() { s.closeErr = s.w.Close() })
	select {
	case s.failed <- err:
	default:
	}
}
