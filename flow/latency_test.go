package flow

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// stubAcceptor records forwarded chunks and lets tests script saturation.
type stubAcceptor struct {
	mu       sync.Mutex
	chunks   []Chunk
	saturate bool
	acceptEr error

	drained  chan struct{}
	failed   chan error
	finishes atomic.Int32
	aborts   atomic.Int32
}

func newStubAcceptor() *stubAcceptor {
	return &stubAcceptor{
		drained: make(chan struct{}, 1),
		failed:  make(chan error, 1),
	}
}

func (a *stubAcceptor) Accept(c Chunk) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.acceptEr != nil {
		return false, a.acceptEr
	}
	a.chunks = append(a.chunks, c)
	return a.saturate, nil
}

func (a *stubAcceptor) Drained() <-chan struct{} { return a.drained }

func (a *stubAcceptor) Failed() <-chan error { return a.failed }

func (a *stubAcceptor) Finish() error {
	a.finishes.Add(1)
	return nil
}

func (a *stubAcceptor) Abort(error) { a.aborts.Add(1) }

func (a *stubAcceptor) seqs() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]int, len(a.chunks))
	for i, c := range a.chunks {
		out[i] = c.Seq
	}
	return out
}

func waitStageDrained(t *testing.T, l *LatencyStage) {
	t.Helper()
	select {
	case <-l.Drained():
	case <-time.After(2 * time.Second):
		t.Fatalf("stage never drained")
	}
}

func TestLatencyForwardsAfterDelay(t *testing.T) {
	next := newStubAcceptor()
	stage := NewLatencyStage(next, 20*time.Millisecond)

	start := time.Now()
	sat, err := stage.Accept(NewChunk(0, []byte("delayed")))
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !sat {
		t.Fatalf("latency stage must always report saturation")
	}
	if got := next.seqs(); len(got) != 0 {
		t.Fatalf("chunk forwarded before the delay elapsed")
	}

	waitStageDrained(t, stage)
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("drained after %v, before the delay elapsed", elapsed)
	}
	if got := next.seqs(); len(got) != 1 || got[0] != 0 {
		t.Fatalf("forwarded seqs %v", got)
	}
}

func TestLatencyPreservesOrder(t *testing.T) {
	next := newStubAcceptor()
	stage := NewLatencyStage(next, time.Millisecond)

	for seq := 0; seq < 5; seq++ {
		if _, err := stage.Accept(NewChunk(seq, []byte("x"))); err != nil {
			t.Fatalf("Accept %d: %v", seq, err)
		}
		waitStageDrained(t, stage)
	}
	want := []int{0, 1, 2, 3, 4}
	got := next.seqs()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order %v, want %v", got, want)
		}
	}
}

func TestLatencyAcceptWhileInFlight(t *testing.T) {
	next := newStubAcceptor()
	stage := NewLatencyStage(next, 50*time.Millisecond)

	if _, err := stage.Accept(NewChunk(0, []byte("a"))); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	sat, err := stage.Accept(NewChunk(1, []byte("b")))
	if !sat || !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected in-flight violation, got sat=%v err=%v", sat, err)
	}
	waitStageDrained(t, stage)
}

func TestLatencyAbortCancelsPending(t *testing.T) {
	next := newStubAcceptor()
	stage := NewLatencyStage(next, 30*time.Millisecond)

	if _, err := stage.Accept(NewChunk(0, []byte("never"))); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	cause := errors.New("torn down")
	stage.Abort(cause)
	stage.Abort(cause)

	time.Sleep(60 * time.Millisecond)
	if got := next.seqs(); len(got) != 0 {
		t.Fatalf("cancelled chunk was still forwarded: %v", got)
	}
	if n := next.aborts.Load(); n != 1 {
		t.Fatalf("downstream aborted %d times, want 1", n)
	}
	if _, err := stage.Accept(NewChunk(1, []byte("late"))); !errors.Is(err, cause) {
		t.Fatalf("accept after abort: %v", err)
	}
}

func TestLatencyWaitsForDownstreamDrain(t *testing.T) {
	next := newStubAcceptor()
	next.saturate = true
	stage := NewLatencyStage(next, time.Millisecond)

	if _, err := stage.Accept(NewChunk(0, []byte("x"))); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	// The stage must not drain while downstream is saturated.
	select {
	case <-stage.Drained():
		t.Fatalf("stage drained while downstream saturated")
	case <-time.After(30 * time.Millisecond):
	}

	next.drained <- struct{}{}
	waitStageDrained(t, stage)
}

func TestLatencyPropagatesDownstreamFailure(t *testing.T) {
	next := newStubAcceptor()
	next.acceptEr = errors.New("downstream dead")
	stage := NewLatencyStage(next, time.Millisecond)

	if _, err := stage.Accept(NewChunk(0, []byte("x"))); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	select {
	case err := <-stage.Failed():
		if !errors.Is(err, next.acceptEr) {
			t.Fatalf("failure: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("downstream failure never propagated")
	}
}

func TestLatencyFinishWaitsForInFlight(t *testing.T) {
	next := newStubAcceptor()
	stage := NewLatencyStage(next, 20*time.Millisecond)

	if _, err := stage.Accept(NewChunk(0, []byte("x"))); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := stage.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if got := next.seqs(); len(got) != 1 {
		t.Fatalf("in-flight chunk lost on finish: %v", got)
	}
	if n := next.finishes.Load(); n != 1 {
		t.Fatalf("downstream finished %d times, want 1", n)
	}
}
