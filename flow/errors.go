package flow

import "errors"

var (
	// ErrSourceRead reports that the underlying read resource failed.
	ErrSourceRead = errors.New("flow: source read failed")
	// ErrSinkWrite reports that the underlying write resource failed.
	ErrSinkWrite = errors.New("flow: sink write failed")
	// ErrStage reports that an intermediate stage failed or was cancelled
	// mid-forward.
	ErrStage = errors.New("flow: stage failed")
	// ErrPipelineAborted reports a caller-initiated cancellation.
	ErrPipelineAborted = errors.New("flow: pipeline aborted")
	// ErrProtocolViolation reports a breach of the flow-control contract
	// between components, e.g. accepting a chunk into an already saturated
	// sink or producing while suspended.
	ErrProtocolViolation = errors.New("flow: protocol violation")
	// ErrIntegrity reports a chunk whose data no longer matches its hash.
	ErrIntegrity = errors.New("flow: chunk hash mismatch")
)

// ErrorKind maps an error to the stable kind name used in session_error
// events. Unrecognized errors map to "internal".
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrSourceRead):
		return "source_read"
	case errors.Is(err, ErrSinkWrite):
		return "sink_write"
	case errors.Is(err, ErrStage):
		return "stage"
	case errors.Is(err, ErrPipelineAborted):
		return "aborted"
	case errors.Is(err, ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	default:
		return "internal"
	}
}
