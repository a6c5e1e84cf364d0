package flow

import (
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/dshills/flowtree-go/flow/emit"
)

// Status is the lifecycle state of a workflow tree node.
//
// Transitions are one-way: idle → running → {completed | failed}.
// Both completed and failed are terminal.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// LogLevel is the severity of a LogEntry.
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// LogEntry is a single append-only log record owned by a node.
//
// ParentLogID optionally points at another log entry, forming a
// finer-grained log-nesting tree that is orthogonal to the node tree.
type LogEntry struct {
	ID          string                 `json:"id"`
	NodeID      string                 `json:"node_id"`
	Time        time.Time              `json:"time"`
	Level       LogLevel               `json:"level"`
	Message     string                 `json:"message"`
	Data        map[string]interface{} `json:"data,omitempty"`
	ParentLogID string                 `json:"parent_log_id,omitempty"`
}

// maxNameLen bounds node display names (in runes, after trimming).
const maxNameLen = 100

// Node is a tree-resident value tracking a unit of work: identity, display
// name, status, parent/children links, append-only log and event buffers,
// and an optional state snapshot.
//
// A Node is created once, at workflow construction, and mutated in place by
// its owning workflow (status, log/event appends, state snapshot) and by a
// parent's detach. Nodes are never self-deleted; destruction is "detach from
// the reachable tree".
//
// The parent link is a back-reference, never ownership; the children list is
// owned and ordered. For trees built only through Attach and Detach the
// parent chain is acyclic and child ∈ parent.Children ⟺ child.Parent() ==
// parent. Traversals still carry a seen-set and fail loudly on corrupted
// (cyclic) trees rather than looping.
//
// Every mutation is atomic under the node's mutex, so a concurrently running
// sibling never observes a half-updated node.
type Node struct {
	id         string
	name       string
	workflowID string

	mu       sync.Mutex
	status   Status
	parent   *Node
	children []*Node
	logs     []LogEntry
	events   []Event
	state    map[string]interface{}

	observers   []Observer
	diagnostics emit.Emitter
	metrics     *Metrics
}

// NewNode creates a detached node with the given display name.
//
// The name must be 1-100 printable characters and non-empty after trimming
// whitespace; otherwise *InvalidNameError is returned.
func NewNode(name string) (*Node, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return &Node{
		id:     uuid.NewString(),
		name:   name,
		status: StatusIdle,
	}, nil
}

// validateName enforces the display-name contract: non-empty after trim,
// at most 100 runes, printable runes only.
func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &InvalidNameError{Name: name, Reason: "empty after trimming whitespace"}
	}
	runes := []rune(name)
	if len(runes) > maxNameLen {
		return &InvalidNameError{Name: name, Reason: "longer than 100 characters"}
	}
	for _, r := range runes {
		if !unicode.IsPrint(r) {
			return &InvalidNameError{Name: name, Reason: "contains non-printable characters"}
		}
	}
	return nil
}

// ID returns the node's opaque identifier.
func (n *Node) ID() string { return n.id }

// Name returns the node's display name.
func (n *Node) Name() string { return n.name }

// WorkflowID returns the id of the workflow that owns this node.
// Empty for nodes created outside a workflow.
func (n *Node) WorkflowID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.workflowID
}

func (n *Node) setWorkflowID(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.workflowID = id
}

// Status returns the node's current lifecycle status.
func (n *Node) Status() Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.status
}

func (n *Node) setStatus(s Status) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.status = s
}

// Parent returns the node's parent, or nil for a root.
func (n *Node) Parent() *Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.parent
}

// Children returns a snapshot of the node's ordered children.
func (n *Node) Children() []*Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// Logs returns a snapshot of the node's log buffer.
func (n *Node) Logs() []LogEntry {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]LogEntry, len(n.logs))
	copy(out, n.logs)
	return out
}

// Events returns a snapshot of the node's event buffer.
func (n *Node) Events() []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Event, len(n.events))
	copy(out, n.events)
	return out
}

// State returns a copy of the node's state snapshot, or nil if none was set.
func (n *Node) State() map[string]interface{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.state == nil {
		return nil
	}
	out := make(map[string]interface{}, len(n.state))
	for k, v := range n.state {
		out[k] = v
	}
	return out
}

// SetState replaces the node's state snapshot and notifies root observers
// via OnStateUpdated. The snapshot is copied on write; callers may reuse the
// map afterwards.
func (n *Node) SetState(state map[string]interface{}) {
	snapshot := make(map[string]interface{}, len(state))
	for k, v := range state {
		snapshot[k] = v
	}

	n.mu.Lock()
	n.state = snapshot
	n.mu.Unlock()

	dispatchStateUpdated(n, n.State())
}

// appendLog adds an entry to the log buffer and notifies root observers.
func (n *Node) appendLog(entry LogEntry) {
	n.mu.Lock()
	n.logs = append(n.logs, entry)
	n.mu.Unlock()

	dispatchLog(n, entry)
}

// appendEvent adds an event to the event buffer and notifies root observers.
func (n *Node) appendEvent(ev Event) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()

	dispatchEvent(n, ev)
}

// Observe registers an observer on this node.
//
// Observers are tree-global: dispatch always resolves to the set registered
// on the tree's current root, regardless of where in the tree a signal
// originates. Registering on a non-root node therefore has effect only while
// that node is (or becomes) a root.
func (n *Node) Observe(obs Observer) {
	if obs == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, obs)
}

// SetDiagnostics sets the fallback channel receiving observer failures
// raised while dispatching from this node's tree. The root's channel is
// used at dispatch time; nil restores the default (stderr log emitter).
func (n *Node) SetDiagnostics(em emit.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.diagnostics = em
}

func (n *Node) snapshotObservers() []Observer {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Observer, len(n.observers))
	copy(out, n.observers)
	return out
}

// Root walks parent links to the tree's root.
//
// The walk carries a seen-set: on a corrupted (cyclic) tree it stops at the
// first revisited node instead of looping. Use IsDescendantOf or
// AncestorChain when cycle corruption must surface as an error.
func (n *Node) Root() *Node {
	seen := map[*Node]bool{n: true}
	cur := n
	for {
		p := cur.Parent()
		if p == nil || seen[p] {
			return cur
		}
		seen[p] = true
		cur = p
	}
}
