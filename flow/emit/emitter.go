// Package emit provides pluggable observability backends for workflow trees.
//
// The core flow package funnels every log line, workflow event, state update,
// and tree change through observers; an Emitter is the terminal sink those
// records land in. Backends range from human-readable logs to OpenTelemetry
// spans.
package emit

// Emitter receives and processes observability records from workflow execution.
//
// Emitters enable pluggable observability backends:
//   - Logging: stdout, files, syslog
//   - Distributed tracing: OpenTelemetry, Jaeger, Zipkin
//   - In-memory capture for tests and dashboards
//
// Implementations should be:
//   - Non-blocking: Avoid slowing down workflow execution
//   - Thread-safe: May be called concurrently from sibling workflows
//   - Resilient: Handle backend failures gracefully (don't crash the workflow)
type Emitter interface {
	// Emit sends an observability record to the configured backend.
	//
	// Emit must not panic. Backend errors should be handled internally
	// (buffered, dropped with internal logging, or sent asynchronously).
	Emit(record Record)
}
