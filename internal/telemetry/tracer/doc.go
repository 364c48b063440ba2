// Package tracer provides OpenTelemetry tracing for Rewind.
//
// Tracing is opt-in: without an endpoint Setup registers nothing and the
// global no-op provider stays in place, so spans cost almost nothing.
package tracer
