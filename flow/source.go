package flow

import (
	"fmt"
	"io"
	"sync"
)

// Source produces an ordered sequence of chunks from a ReadResource. It
// never references the sink; the bridge alone decides when it may produce.
//
// The resource is released exactly once on every exit path: end of stream,
// read failure, or abort, even when abort races with an in-flight produce.
type Source struct {
	r ReadResource

	mu        sync.Mutex
	suspended bool
	aborted   bool
	eof       bool
	seq       int
	produced  int64

	closeOnce sync.Once
	closeErr  error
}

// NewSource wraps a read resource.
func NewSource(r ReadResource) *Source {
	return &Source{r: r}
}

// Produce returns the next chunk in sequence, or io.EOF after the final
// byte. On EOF and on read failure the resource has already been released
// when Produce returns.
func (s *Source) Produce() (Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return Chunk{}, fmt.Errorf("%w: produce after abort", ErrSourceRead)
	}
	if s.eof {
		return Chunk{}, io.EOF
	}
	if s.suspended {
		return Chunk{}, fmt.Errorf("%w: produce while suspended", ErrProtocolViolation)
	}
	data, err := s.r.ReadNext()
	if err == io.EOF {
		s.eof = true
		s.release()
		return Chunk{}, io.EOF
	}
	if err != nil {
		s.aborted = true
		s.release()
		return Chunk{}, fmt.Errorf("%w: %v", ErrSourceRead, err)
	}
	c := NewChunk(s.seq, data)
	s.seq++
	s.produced += c.Len()
	return c, nil
}

// Suspend stops production. No-op while already suspended.
func (s *Source) Suspend() {
	s.mu.Lock()
	s.suspended = true
	s.mu.Unlock()
}

// Resume re-enables production. No-op while already active.
func (s *Source) Resume() {
	s.mu.Lock()
	s.suspended = false
	s.mu.Unlock()
}

// Abort stops production and releases the resource. Idempotent; safe after
// end of stream.
func (s *Source) Abort(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = true
	s.release()
}

// Suspended reports whether the source is currently suspended.
func (s *Source) Suspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suspended
}

// Produced returns total bytes produced so far.
func (s *Source) Produced() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.produced
}

// release closes the resource once. Callers hold s.mu.
func (s *Source) release() {
	s.closeOnce.Do(func() {
		s.closeErr = s.r.Close()
	})
}
