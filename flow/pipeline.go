package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

// Pipeline is the automatic-mode bridge. It connects a source through an
// optional chain of stages to a terminal sink and drives the whole unit
// with one Run call: backpressure is handled internally, any stage failure
// aborts every other stage before the error surfaces, and cancellation
// unwinds all stages before Run returns.
type Pipeline struct {
	src  Producer
	sink Acceptor
	head Acceptor

	sess *Session
	rec  Recorder
	log  zerolog.Logger

	state    BridgeState
	ran      bool
	downOnce sync.Once
}

// NewPipeline assembles src, the given stages (outermost first), and sink
// into one managed unit.
func NewPipeline(src Producer, sink Acceptor, stages []StageFunc, opts ...Option) *Pipeline {
	bo := defaultBridgeOptions()
	for _, opt := range opts {
		opt(&bo)
	}
	return &Pipeline{
		src:   src,
		sink:  sink,
		head:  Chain(sink, stages...),
		sess:  bo.sess,
		rec:   bo.rec,
		log:   bo.log,
		state: StateIdle,
	}
}

// State returns the current bridge state.
func (p *Pipeline) State() BridgeState { return p.state }

// Session returns the session counters.
func (p *Pipeline) Session() *Session { return p.sess }

// Run drives the transfer to completion. It returns nil only after every
// stage has reached terminal success; on any failure or on cancellation it
// tears every stage down exactly once before returning the consolidated
// error. A pipeline runs exactly once.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	if p.ran {
		return fmt.Errorf("%w: pipeline reused", ErrProtocolViolation)
	}
	p.ran = true
	p.state = StateActive
	p.log.Debug().Str("session", p.sess.ID()).Msg("pipeline started")

	defer func() {
		if err != nil {
			p.teardown(err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrPipelineAborted, ctx.Err())
		case ferr := <-p.head.Failed():
			return ferr
		default:
		}

		chunk, perr := p.src.Produce()
		if errors.Is(perr, io.EOF) {
			if ferr := p.head.Finish(); ferr != nil {
				return ferr
			}
			p.state = StateFinished
			p.recordComplete()
			return nil
		}
		if perr != nil {
			return perr
		}
		offset := p.sess.AddProduced(chunk.Len())

		saturated, aerr := p.head.Accept(chunk)
		if aerr != nil {
			return aerr
		}
		if !saturated {
			continue
		}

		p.src.Suspend()
		p.state = StateSaturated
		count := p.sess.IncBackpressure()
		p.rec.BackpressureEvent(p.sess.ID(), offset, count)
		p.log.Debug().
			Str("session", p.sess.ID()).
			Int64("offset", offset).
			Int64("count", count).
			Msg("backpressure: source suspended")

		select {
		case <-p.head.Drained():
			p.src.Resume()
			p.state = StateActive
		case ferr := <-p.head.Failed():
			return ferr
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrPipelineAborted, ctx.Err())
		}
	}
}

// teardown aborts every stage exactly once and records the failure.
func (p *Pipeline) teardown(err error) {
	p.downOnce.Do(func() {
		p.state = StateErrored
		p.src.Abort(err)
		// Abort cascades down the chain; every component guards its own
		// terminal transition.
		p.head.Abort(err)
		p.rec.SessionError(p.sess.ID(), ErrorKind(err))
		p.log.Error().Err(err).Str("session", p.sess.ID()).Msg("pipeline failed")
	})
}

func (p *Pipeline) recordComplete() {
	if sc, ok := p.sink.(interface{ Consumed() int64 }); ok {
		p.sess.SetConsumed(sc.Consumed())
	} else {
		p.sess.SetConsumed(p.sess.Produced())
	}
	p.rec.SessionComplete(p.sess.ID(), p.sess.Consumed(), p.sess.Elapsed(), p.sess.Backpressure())
	p.log.Info().
		Str("session", p.sess.ID()).
		Int64("bytes", p.sess.Consumed()).
		Int64("backpressure", p.sess.Backpressure()).
		Dur("elapsed", p.sess.Elapsed()).
		Msg("pipeline complete")
}
