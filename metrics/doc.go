// Package metrics provides recorders for the structured events a transfer
// session emits. The core defines the contract (flow.Recorder); this
// package renders events to structured logs or to OpenTelemetry
// instruments. Recorders are injected per session, never installed as
// process-wide state.
package metrics
