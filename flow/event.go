package flow

import "time"

// EventType tags a WorkflowEvent. The set is closed; consumers may safely
// switch over every member.
type EventType string

const (
	EventTaskStart       EventType = "task_start"
	EventTaskEnd         EventType = "task_end"
	EventStepStart       EventType = "step_start"
	EventStepEnd         EventType = "step_end"
	EventChildAttached   EventType = "child_attached"
	EventChildDetached   EventType = "child_detached"
	EventError           EventType = "error"
	EventCacheHit        EventType = "cache_hit"
	EventCacheMiss       EventType = "cache_miss"
	EventReflectionStart EventType = "reflection_start"
	EventReflectionEnd   EventType = "reflection_end"
)

// Event is a structured workflow event, immutable once constructed.
//
// Every event carries its originating node. Tag-specific fields are set only
// for the tags that define them:
//   - child_attached / child_detached: ParentID, ChildID (Node is the child)
//   - task_* / step_*: Name
//   - error: Err
//   - cache_hit / cache_miss: Key
//   - reflection_start / reflection_end: Name, Attempt, Reason (end only)
type Event struct {
	// Type is the event tag.
	Type EventType

	// Node is the originating tree node. For attach/detach events this is
	// the child being attached or detached.
	Node *Node

	// WorkflowID identifies the workflow that emitted the event.
	WorkflowID string

	// Time is when the event was constructed.
	Time time.Time

	// Name is the step or task name for boundary events.
	Name string

	// ParentID and ChildID identify the affected edge for attach/detach.
	ParentID string
	ChildID  string

	// Err carries the failure for error events. For concurrent task
	// failures this is the aggregate (or single rethrown) error.
	Err error

	// Key is the cache key for cache_hit / cache_miss.
	Key string

	// Attempt is the zero-based retry round for reflection events.
	Attempt int

	// Reason is the reflector's explanation on reflection_end.
	Reason string
}

// newEvent stamps an event with its originating node and time.
func newEvent(typ EventType, node *Node) Event {
	ev := Event{
		Type: typ,
		Node: node,
		Time: time.Now(),
	}
	if node != nil {
		ev.WorkflowID = node.WorkflowID()
	}
	return ev
}
