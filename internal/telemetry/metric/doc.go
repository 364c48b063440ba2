// Package metric provides Prometheus metrics for Rewind.
//
//   - prometheus.go: the registry, replay collectors and HTTP handler
//
// Metrics include:
//
//   - Entries applied, by kind
//   - Replay failures, by error code
//   - Segment resets and unknown thread exits
//   - Staged and committed memory bytes
//   - Replay duration
//
// Metrics are exposed at /metrics in Prometheus format when
// `metrics.addr` is configured.
package metric
