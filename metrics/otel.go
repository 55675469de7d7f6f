package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelRecorder exports session events as OpenTelemetry metrics.
type OTelRecorder struct {
	backpressure metric.Int64Counter
	bytes        metric.Int64Counter
	sessions     metric.Int64Counter
	errors       metric.Int64Counter
	duration     metric.Float64Histogram
}

// NewOTelRecorder creates the transfer instruments on meter.
func NewOTelRecorder(meter metric.Meter) (*OTelRecorder, error) {
	backpressure, err := meter.Int64Counter("backflow.backpressure.events",
		metric.WithDescription("Number of times a source was suspended"))
	if err != nil {
		return nil, err
	}
	bytes, err := meter.Int64Counter("backflow.bytes.consumed",
		metric.WithUnit("By"),
		metric.WithDescription("Bytes flushed by terminal sinks"))
	if err != nil {
		return nil, err
	}
	sessions, err := meter.Int64Counter("backflow.sessions.completed",
		metric.WithDescription("Sessions that reached terminal success"))
	if err != nil {
		return nil, err
	}
	errored, err := meter.Int64Counter("backflow.sessions.errored",
		metric.WithDescription("Sessions that reached terminal failure"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("backflow.session.duration",
		metric.WithUnit("s"),
		metric.WithDescription("End-to-end session duration"))
	if err != nil {
		return nil, err
	}
	return &OTelRecorder{
		backpressure: backpressure,
		bytes:        bytes,
		sessions:     sessions,
		errors:       errored,
		duration:     duration,
	}, nil
}

// BackpressureEvent counts one source suspension.
func (r *OTelRecorder) BackpressureEvent(sessionID string, offset, count int64) {
	r.backpressure.Add(context.Background(), 1)
}

// SessionComplete records the session totals.
func (r *OTelRecorder) SessionComplete(sessionID string, bytes int64, elapsed time.Duration, backpressure int64) {
	ctx := context.Background()
	r.bytes.Add(ctx, bytes)
	r.sessions.Add(ctx, 1)
	r.duration.Record(ctx, elapsed.Seconds())
}

// SessionError counts a failed session by kind.
func (r *OTelRecorder) SessionError(sessionID string, kind string) {
	r.errors.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind)))
}
