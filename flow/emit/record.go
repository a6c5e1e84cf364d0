package emit

// Record is the flattened, backend-facing form of an observability signal
// produced somewhere in a workflow tree.
//
// Records are produced for:
//   - Log entries appended to a node
//   - Workflow events (task/step boundaries, attach/detach, errors, cache
//     hits and misses, reflection rounds)
//   - State snapshot updates
//   - Diagnostic failures (e.g. a panicking observer)
//
// A Record is a value type; once handed to an Emitter it is never mutated.
type Record struct {
	// WorkflowID identifies the workflow whose node produced this record.
	WorkflowID string

	// NodeID identifies the originating tree node.
	// Empty for records not tied to a single node.
	NodeID string

	// Kind is the record category: "log", "event", "state", "tree",
	// or "diagnostic".
	Kind string

	// Msg is a human-readable description (log message or event type tag).
	Msg string

	// Meta contains additional structured data specific to this record.
	// Common keys:
	//   - "level": Log level for Kind == "log"
	//   - "parent_id", "child_id": Attach/detach events
	//   - "error": Error text for error events and diagnostics
	//   - "attempt": Reflection retry attempt number
	Meta map[string]interface{}
}
