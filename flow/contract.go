package flow

// Producer is the upstream half of the flow-control contract. The bridge
// owns the suspend/resume decision; a producer only obeys it.
type Producer interface {
	// Produce returns the next chunk, or io.EOF once every byte has been
	// produced and the underlying resource released. Calling Produce while
	// suspended is a protocol violation.
	Produce() (Chunk, error)
	// Suspend stops chunk production. Idempotent.
	Suspend()
	// Resume re-enables chunk production. Idempotent.
	Resume()
	// Abort releases the underlying resource exactly once and prevents
	// further production.
	Abort(err error)
}

// Acceptor is the downstream half of the flow-control contract, implemented
// by the terminal sink and by every interposed stage.
//
// Accept follows write-then-signal semantics: the chunk that trips the
// high-water mark is still buffered, and the caller learns about saturation
// only through the return value. Once saturated, the acceptor takes no
// further chunks until its drained notification has fired.
type Acceptor interface {
	Accept(c Chunk) (saturated bool, err error)
	// Drained delivers exactly one notification per saturation period, once
	// the buffered-byte counter falls to the low-water mark.
	Drained() <-chan struct{}
	// Failed delivers asynchronous flush or forward failures.
	Failed() <-chan error
	// Finish flushes buffered bytes and transitions to terminal success.
	// Finish and Abort are idempotent and mutually exclusive; whichever is
	// invoked first wins.
	Finish() error
	// Abort discards unflushed bytes and transitions to terminal failure.
	Abort(err error)
}

// StageFunc wraps the next acceptor in a chain with an intermediate stage.
type StageFunc func(next Acceptor) Acceptor

// Chain composes stages around a terminal sink, outermost first, and
// returns the head of the chain.
func Chain(sink Acceptor, stages ...StageFunc) Acceptor {
	head := sink
	for i := len(stages) - 1; i >= 0; i-- {
		head = stages[i](head)
	}
	return head
}
