// Package flow provides bounded-memory byte transfer between endpoints of
// mismatched throughput.
//
// Key features:
//   - Chunked transfer with configurable chunk sizes
//   - Explicit backpressure: a saturated sink suspends the source, a drained
//     sink resumes it, and every suspension is observable
//   - Two bridge strategies over one capability contract: the manual
//     FlowController and the automatic Pipeline
//   - An interposed latency stage to force backpressure deterministically
//   - Optional LZ4 compression stages for chained pipelines
//
// Memory stays bounded because the bridge never queues chunks itself: the
// only response to a saturated sink is to stop producing.
package flow
