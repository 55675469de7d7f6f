package metrics

import (
	"time"

	"github.com/rs/zerolog"
)

// LogRecorder renders session events as structured log lines.
type LogRecorder struct {
	log zerolog.Logger
}

// NewLogRecorder wraps log as a session recorder.
func NewLogRecorder(log zerolog.Logger) *LogRecorder {
	return &LogRecorder{log: log}
}

// BackpressureEvent logs one source suspension.
func (r *LogRecorder) BackpressureEvent(sessionID string, offset, count int64) {
	r.log.Info().
		Str("session", sessionID).
		Int64("offset", offset).
		Int64("count", count).
		Msg("backpressure_event")
}

// SessionComplete logs terminal success.
func (r *LogRecorder) SessionComplete(sessionID string, bytes int64, elapsed time.Duration, backpressure int64) {
	r.log.Info().
		Str("session", sessionID).
		Int64("bytes", bytes).
		Dur("duration", elapsed).
		Int64("backpressure_count", backpressure).
		Msg("session_complete")
}

// SessionError logs terminal failure.
func (r *LogRecorder) SessionError(sessionID string, kind string) {
	r.log.Error().
		Str("session", sessionID).
		Str("kind", kind).
		Msg("session_error")
}
