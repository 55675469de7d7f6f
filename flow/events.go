package flow

import "time"

// Recorder receives the structured events a session emits. Implementations
// decide how to render them; the core never depends on an output format.
// A recorder is injected per session, never shared process-wide state.
type Recorder interface {
	// BackpressureEvent fires each time the bridge suspends the source.
	// Offset is the produced-byte offset at suspension, count the running
	// event total for the session.
	BackpressureEvent(sessionID string, offset, count int64)
	// SessionComplete fires once when a session reaches terminal success.
	SessionComplete(sessionID string, bytes int64, elapsed time.Duration, backpressure int64)
	// SessionError fires once when a session reaches terminal failure.
	SessionError(sessionID string, kind string)
}

// NopRecorder discards all events.
type NopRecorder struct{}

func (NopRecorder) BackpressureEvent(string, int64, int64) {}

func (NopRecorder) SessionComplete(string, int64, time.Duration, int64) {}

func (NopRecorder) SessionError(string, string) {}
