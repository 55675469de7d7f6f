package flow

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// BridgeState is the tagged state of a transfer bridge. Transitions happen
// only inside the bridge driving loop, so illegal moves (e.g. resuming a
// source that was never suspended) cannot occur by construction and are
// additionally guarded where components could misbehave.
type BridgeState uint8

const (
	StateIdle BridgeState = iota
	StateActive
	StateSaturated
	StateFinished
	StateErrored
)

// String returns the state name.
func (s BridgeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateSaturated:
		return "saturated"
	case StateFinished:
		return "finished"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// FlowController is the manual-mode bridge: it observes source output and
// sink capacity, issues suspend/resume, and counts backpressure events.
//
// It is the deliberately minimal legacy strategy kept as a comparison
// baseline: it knows only its two endpoints, takes no context, and cannot
// be cancelled externally. New callers should prefer Pipeline.
type FlowController struct {
	src  Producer
	sink Acceptor
	sess *Session
	rec  Recorder
	log  zerolog.Logger

	state BridgeState
}

// NewFlowController builds a manual bridge between src and sink.
func NewFlowController(src Producer, sink Acceptor, opts ...Option) *FlowController {
	bo := defaultBridgeOptions()
	for _, opt := range opts {
		opt(&bo)
	}
	return &FlowController{
		src:   src,
		sink:  sink,
		sess:  bo.sess,
		rec:   bo.rec,
		log:   bo.log,
		state: StateIdle,
	}
}

// bridgeOptions carries the per-session collaborators shared by both
// bridge strategies.
type bridgeOptions struct {
	sess *Session
	rec  Recorder
	log  zerolog.Logger
}

func defaultBridgeOptions() bridgeOptions {
	return bridgeOptions{
		sess: NewSession(),
		rec:  NopRecorder{},
		log:  zerolog.Nop(),
	}
}

// Option customizes a bridge.
type Option func(*bridgeOptions)

// WithRecorder injects the metrics collaborator for the session.
func WithRecorder(rec Recorder) Option {
	return func(bo *bridgeOptions) { bo.rec = rec }
}

// WithLogger injects a structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(bo *bridgeOptions) { bo.log = log }
}

// WithSession substitutes a caller-owned session.
func WithSession(sess *Session) Option {
	return func(bo *bridgeOptions) { bo.sess = sess }
}

// State returns the current bridge state.
func (c *FlowController) State() BridgeState { return c.state }

// Session returns the session counters.
func (c *FlowController) Session() *Session { return c.sess }

// Transfer drives the session until the source is exhausted and the sink
// has finished, or until any component fails. A controller runs exactly one
// transfer.
func (c *FlowController) Transfer() error {
	if c.state != StateIdle {
		return fmt.Errorf("%w: controller reused", ErrProtocolViolation)
	}
	c.state = StateActive
	c.log.Debug().Str("session", c.sess.ID()).Msg("transfer started")

	for {
		// A flush failure can surface between chunks.
		select {
		case err := <-c.sink.Failed():
			return c.errored(err)
		default:
		}

		chunk, err := c.src.Produce()
		if errors.Is(err, io.EOF) {
			return c.finished()
		}
		if err != nil {
			return c.errored(err)
		}
		offset := c.sess.AddProduced(chunk.Len())

		saturated, err := c.sink.Accept(chunk)
		if err != nil {
			return c.errored(err)
		}
		if !saturated {
			continue
		}

		c.src.Suspend()
		c.state = StateSaturated
		count := c.sess.IncBackpressure()
		c.rec.BackpressureEvent(c.sess.ID(), offset, count)
		c.log.Debug().
			Str("session", c.sess.ID()).
			Int64("offset", offset).
			Int64("count", count).
			Msg("backpressure: source suspended")

		select {
		case <-c.sink.Drained():
			c.src.Resume()
			c.state = StateActive
		case err := <-c.sink.Failed():
			return c.errored(err)
		}
	}
}

func (c *FlowController) finished() error {
	if err := c.sink.Finish(); err != nil {
		return c.errored(err)
	}
	c.state = StateFinished
	c.recordComplete()
	return nil
}

func (c *FlowController) errored(err error) error {
	c.state = StateErrored
	// Both endpoints terminate exactly once; their own guards make the
	// propagation idempotent.
	c.src.Abort(err)
	c.sink.Abort(err)
	c.rec.SessionError(c.sess.ID(), ErrorKind(err))
	c.log.Error().Err(err).Str("session", c.sess.ID()).Msg("transfer failed")
	return err
}

func (c *FlowController) recordComplete() {
	if sc, ok := c.sink.(interface{ Consumed() int64 }); ok {
		c.sess.SetConsumed(sc.Consumed())
	} else {
		c.sess.SetConsumed(c.sess.Produced())
	}
	c.rec.SessionComplete(c.sess.ID(), c.sess.Consumed(), c.sess.Elapsed(), c.sess.Backpressure())
	c.log.Info().
		Str("session", c.sess.ID()).
		Int64("bytes", c.sess.Consumed()).
		Int64("backpressure", c.sess.Backpressure()).
		Dur("elapsed", c.sess.Elapsed()).
		Msg("transfer complete")
}
