package flow

import (
	"errors"
	"io"
	"sync/atomic"
	"testing"
)

// countingResource tracks Close calls on a wrapped read resource.
type countingResource struct {
	inner  ReadResource
	closes atomic.Int32
}

func (c *countingResource) ReadNext() ([]byte, error) { return c.inner.ReadNext() }

func (c *countingResource) Close() error {
	c.closes.Add(1)
	return c.inner.Close()
}

// failingResource serves limit reads, then fails.
type failingResource struct {
	reads  int
	limit  int
	closes atomic.Int32
}

var errBroken = errors.New("resource broken")

func (f *failingResource) ReadNext() ([]byte, error) {
	if f.reads >= f.limit {
		return nil, errBroken
	}
	f.reads++
	return []byte("data"), nil
}

func (f *failingResource) Close() error {
	f.closes.Add(1)
	return nil
}

func TestSourceProducesSequential(t *testing.T) {
	res := &countingResource{inner: NewMemReadResource([]byte("abcdefghij"), 4)}
	src := NewSource(res)

	var total int64
	for seq := 0; ; seq++ {
		c, err := src.Produce()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Produce: %v", err)
		}
		if c.Seq != seq {
			t.Fatalf("chunk seq %d, want %d", c.Seq, seq)
		}
		total += c.Len()
	}
	if total != 10 {
		t.Fatalf("produced %d bytes, want 10", total)
	}
	if src.Produced() != 10 {
		t.Fatalf("Produced() = %d", src.Produced())
	}
	if n := res.closes.Load(); n != 1 {
		t.Fatalf("resource closed %d times, want 1", n)
	}
	// EOF is sticky.
	if _, err := src.Produce(); err != io.EOF {
		t.Fatalf("expected sticky EOF, got %v", err)
	}
}

func TestSourceProduceWhileSuspended(t *testing.T) {
	src := NewSource(NewMemReadResource([]byte("abcd"), 2))
	src.Suspend()
	if _, err := src.Produce(); !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected protocol violation, got %v", err)
	}
	src.Resume()
	if _, err := src.Produce(); err != nil {
		t.Fatalf("Produce after resume: %v", err)
	}
}

func TestSourceSuspendResumeIdempotent(t *testing.T) {
	src := NewSource(NewMemReadResource([]byte("abcd"), 2))
	src.Suspend()
	src.Suspend()
	if !src.Suspended() {
		t.Fatalf("source should be suspended")
	}
	src.Resume()
	src.Resume()
	if src.Suspended() {
		t.Fatalf("source should be active")
	}
}

func TestSourceAbortReleasesOnce(t *testing.T) {
	res := &countingResource{inner: NewMemReadResource([]byte("abcd"), 2)}
	src := NewSource(res)

	src.Abort(errBroken)
	src.Abort(errBroken)
	if n := res.closes.Load(); n != 1 {
		t.Fatalf("resource closed %d times, want 1", n)
	}
	if _, err := src.Produce(); !errors.Is(err, ErrSourceRead) {
		t.Fatalf("expected source error after abort, got %v", err)
	}
}

func TestSourceReadErrorReleases(t *testing.T) {
	res := &failingResource{limit: 2}
	src := NewSource(res)

	for i := 0; i < 2; i++ {
		if _, err := src.Produce(); err != nil {
			t.Fatalf("Produce %d: %v", i, err)
		}
	}
	_, err := src.Produce()
	if !errors.Is(err, ErrSourceRead) {
		t.Fatalf("expected ErrSourceRead, got %v", err)
	}
	if n := res.closes.Load(); n != 1 {
		t.Fatalf("resource closed %d times, want 1", n)
	}
}

func TestSourceAbortAfterEOFNoDoubleClose(t *testing.T) {
	res := &countingResource{inner: NewMemReadResource(nil, 2)}
	src := NewSource(res)

	if _, err := src.Produce(); err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	src.Abort(errBroken)
	if n := res.closes.Load(); n != 1 {
		t.Fatalf("resource closed %d times, want 1", n)
	}
}
