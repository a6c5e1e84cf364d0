package flow

import "fmt"

// Error taxonomy:
//
//   - Structural tree-integrity errors (*NotAttachedError,
//     *CircularReferenceError) signal a programming defect. They are always
//     fatal, never retried, and propagate unwrapped.
//   - Workflow-body failures are caught at a step/task boundary, wrapped
//     into *WorkflowError with the node's state and logs, then rethrown
//     singly or aggregated by the concurrency coordinator.
//   - Observer-callback failures are isolated per observer and routed to a
//     fallback diagnostic channel; they never reach the emitting workflow.

// InvalidNameError reports a node display name violating the 1-100
// printable-character contract.
type InvalidNameError struct {
	Name   string
	Reason string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid node name %q: %s", e.Name, e.Reason)
}

// NotAttachedError reports a detach of a child that is not among the
// parent's children.
type NotAttachedError struct {
	ParentID string
	ChildID  string
}

func (e *NotAttachedError) Error() string {
	return fmt.Sprintf("node %s is not attached to parent %s", e.ChildID, e.ParentID)
}

// AlreadyAttachedError reports an attach of a child that already has a
// parent.
type AlreadyAttachedError struct {
	ChildID  string
	ParentID string
}

func (e *AlreadyAttachedError) Error() string {
	return fmt.Sprintf("node %s is already attached to parent %s", e.ChildID, e.ParentID)
}

// CircularReferenceError reports a cycle discovered during an ancestor walk.
// It signals a corrupted tree: parent links built only through Attach and
// Detach can never cycle, so a traversal revisiting a node means the links
// were mutated out-of-band. Traversals must surface this loudly, never
// return a wrong boolean.
type CircularReferenceError struct {
	// NodeID is the first node revisited by the walk.
	NodeID string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular parent reference detected at node %s", e.NodeID)
}

// WorkflowError is the failure type crossing every step/task boundary.
//
// It carries the owning workflow's id plus the context accumulated to the
// failure point: the node's state snapshot, its log buffer, and a captured
// stack. For aggregate failures produced by the concurrency coordinator,
// FailedWorkflowIDs lists every failing child (deduplicated, in input
// order) and Logs is the concatenation of the failing children's logs.
type WorkflowError struct {
	// Message is the failure description. For wrapped body failures it is
	// the original error text, so Error() surfaces the cause verbatim.
	Message string

	// Cause is the original failure, if any.
	Cause error

	// WorkflowID is the owning workflow. For aggregates, the parent's id.
	WorkflowID string

	// Stack is the captured stack text, when available.
	Stack string

	// State is the node's state snapshot at the failure point.
	State map[string]interface{}

	// Logs is the log buffer accumulated to the failure point.
	Logs []LogEntry

	// FailedWorkflowIDs lists the failing children of an aggregate error.
	// Empty for single failures.
	FailedWorkflowIDs []string
}

func (e *WorkflowError) Error() string { return e.Message }

// Unwrap returns the original failure for errors.Is / errors.As chains.
func (e *WorkflowError) Unwrap() error { return e.Cause }

// MissingScopeError reports code requiring the ambient execution-context
// binding running outside any scope. Op names the operation that needed the
// binding.
type MissingScopeError struct {
	Op string
}

func (e *MissingScopeError) Error() string {
	return fmt.Sprintf("%s: no workflow scope bound to context", e.Op)
}

// isTreeIntegrityError reports whether err is a structural tree error that
// must propagate unwrapped and never be retried.
func isTreeIntegrityError(err error) bool {
	switch err.(type) {
	case *NotAttachedError, *AlreadyAttachedError, *CircularReferenceError:
		return true
	}
	return false
}
