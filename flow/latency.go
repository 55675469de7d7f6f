package flow

import (
	"fmt"
	"sync"
	"time"
)

// LatencyStage forwards each chunk to the next acceptor after a fixed
// delay, simulating a slow consumer without external dependencies.
//
// Capacity is exactly one chunk: every Accept reports saturation, and the
// stage signals drained only after its chunk has been handed downstream and
// the downstream acceptor is itself willing to take more. Emission order is
// strictly FIFO because a second chunk is never admitted while one is in
// flight.
type LatencyStage struct {
	next  Acceptor
	delay time.Duration

	mu         sync.Mutex
	pending    bool
	terminated bool
	termErr    error
	timer      *time.Timer

	drained chan struct{}
	failed  chan error
	quit    chan struct{}

	termOnce sync.Once
	inflight sync.WaitGroup
}

// NewLatencyStage wraps next with a per-chunk forwarding delay.
func NewLatencyStage(next Acceptor, delay time.Duration) *LatencyStage {
	return &LatencyStage{
		next:    next,
		delay:   delay,
		drained: make(chan struct{}, 1),
		failed:  make(chan error, 1),
		quit:    make(chan struct{}),
	}
}

// WithLatency returns a stage constructor for use in a pipeline chain.
func WithLatency(delay time.Duration) StageFunc {
	return func(next Acceptor) Acceptor {
		return NewLatencyStage(next, delay)
	}
}

// Accept admits one chunk into the delay. It always reports saturation;
// admitting a second chunk while one is pending is a protocol violation.
func (l *LatencyStage) Accept(c Chunk) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.terminated {
		err := l.termErr
		if err == nil {
			err = fmt.Errorf("%w: accept after terminal state", ErrStage)
		}
		return false, err
	}
	if l.pending {
		return true, fmt.Errorf("%w: accept while chunk in flight", ErrProtocolViolation)
	}
	l.pending = true
	l.inflight.Add(1)
	l.timer = time.AfterFunc(l.delay, func() { l.deliver(c) })
	return true, nil
}

// Drained delivers one notification per forwarded chunk, once downstream
// has accepted it and is not saturated.
func (l *LatencyStage) Drained() <-chan struct{} { return l.drained }

// Failed delivers downstream failures observed while forwarding.
func (l *LatencyStage) Failed() <-chan error { return l.failed }

// Finish waits for the in-flight chunk to forward, then finishes the rest
// of the chain.
func (l *LatencyStage) Finish() error {
	l.inflight.Wait()
	l.mu.Lock()
	if l.terminated {
		err := l.termErr
		l.mu.Unlock()
		return err
	}
	l.terminated = true
	l.mu.Unlock()
	return l.next.Finish()
}

// Abort cancels any pending delay without forwarding the delayed chunk and
// propagates the abort downstream. Idempotent.
func (l *LatencyStage) Abort(err error) {
	l.termOnce.Do(func() {
		l.mu.Lock()
		l.terminated = true
		if l.termErr == nil {
			if err == nil {
				err = fmt.Errorf("%w: aborted", ErrStage)
			}
			l.termErr = err
		}
		if l.timer != nil {
			if l.timer.Stop() && l.pending {
				// Timer cancelled before firing: the delivery callback
				// will never run.
				l.pending = false
				l.inflight.Done()
			}
		}
		l.mu.Unlock()
		close(l.quit)
		l.next.Abort(err)
	})
}

// deliver runs in the timer goroutine once the delay elapses.
func (l *LatencyStage) deliver(c Chunk) {
	defer l.inflight.Done()
	l.mu.Lock()
	if l.terminated {
		l.pending = false
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	sat, err := l.next.Accept(c)
	if err != nil {
		l.fail(err)
		return
	}
	if sat {
		select {
		case <-l.next.Drained():
		case err := <-l.next.Failed():
			l.fail(err)
			return
		case <-l.quit:
			return
		}
	}

	l.mu.Lock()
	l.pending = false
	l.mu.Unlock()
	select {
	case l.drained <- struct{}{}:
	default:
	}
}

// fail records a downstream failure and notifies the bridge.
func (l *LatencyStage) fail(err error) {
	l.mu.Lock()
	l.terminated = true
	l.pending = false
	if l.termErr == nil {
		l.termErr = err
	}
	l.mu.Unlock()
	select {
	case l.failed <- err:
	default:
	}
}
