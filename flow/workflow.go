package flow

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"

	"github.com/dshills/flowtree-go/flow/emit"
)

// Body is the user-supplied logic a workflow executes. It runs inside the
// workflow's ambient scope; use Current, CurrentLogger, Step, and Task on
// the received context.
type Body[R any] func(ctx context.Context) (R, error)

// Workflow is the public unit of work: a tree node wrapping a user body.
//
// Construction flows root-down (a workflow naming a parent is attached
// synchronously, emitting child_attached) while observability flows
// leaf-up, bubbling logs and events to the root's observer set.
//
// Type parameter R is the body's result type. Heterogeneous trees can use
// Workflow[any].
type Workflow[R any] struct {
	id   string
	node *Node
	body Body[R]

	reflector Reflector
	backoff   BackoffPolicy
	metrics   *Metrics
}

// config collects functional options before they are applied.
type config struct {
	parent      *Node
	observers   []Observer
	diagnostics emit.Emitter
	metrics     *Metrics
	reflector   Reflector
	backoff     BackoffPolicy
}

// Option configures a workflow at construction.
//
// Collaborators that were historically process-wide singletons (the
// diagnostic channel, metrics, the reflection engine) are plain injected
// dependencies here, keeping workflows testable without hidden global
// state.
type Option func(*config) error

// WithParent attaches the new workflow's node beneath parent immediately at
// construction, emitting child_attached to the tree's root observers.
func WithParent(parent *Node) Option {
	return func(cfg *config) error {
		if parent == nil {
			return fmt.Errorf("parent node cannot be nil")
		}
		cfg.parent = parent
		return nil
	}
}

// WithObserver registers an observer on the workflow's node. Dispatch
// resolves to the tree root's observer set, so this matters for workflows
// that are (or become) roots.
func WithObserver(obs Observer) Option {
	return func(cfg *config) error {
		if obs == nil {
			return fmt.Errorf("observer cannot be nil")
		}
		cfg.observers = append(cfg.observers, obs)
		return nil
	}
}

// WithEmitter registers an emit backend as an observer, forwarding every
// tree signal to it as flattened records.
func WithEmitter(emitter emit.Emitter) Option {
	return func(cfg *config) error {
		if emitter == nil {
			return fmt.Errorf("emitter cannot be nil")
		}
		cfg.observers = append(cfg.observers, NewEmitterObserver(emitter))
		return nil
	}
}

// WithDiagnostics sets the fallback channel receiving observer failures.
// Defaults to a text LogEmitter on stderr.
func WithDiagnostics(emitter emit.Emitter) Option {
	return func(cfg *config) error {
		cfg.diagnostics = emitter
		return nil
	}
}

// WithMetrics wires Prometheus collectors into the workflow and every step
// and task executed beneath it.
func WithMetrics(m *Metrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}

// WithReflector wires the reflection collaborator consulted by the step
// retry loop.
func WithReflector(r Reflector) Option {
	return func(cfg *config) error {
		cfg.reflector = r
		return nil
	}
}

// WithBackoff sets the delay policy between reflective retries.
func WithBackoff(p BackoffPolicy) Option {
	return func(cfg *config) error {
		cfg.backoff = p
		return nil
	}
}

// New creates a workflow named name around the given body.
//
// The name must satisfy the node display-name contract (1-100 printable
// characters, non-empty after trim). With WithParent the node is attached
// synchronously before New returns.
func New[R any](name string, body Body[R], opts ...Option) (*Workflow[R], error) {
	if body == nil {
		return nil, fmt.Errorf("workflow body cannot be nil")
	}

	var cfg config
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	node, err := NewNode(name)
	if err != nil {
		return nil, err
	}

	w := &Workflow[R]{
		id:        uuid.NewString(),
		node:      node,
		body:      body,
		reflector: cfg.reflector,
		backoff:   cfg.backoff,
		metrics:   cfg.metrics,
	}
	node.setWorkflowID(w.id)

	for _, obs := range cfg.observers {
		node.Observe(obs)
	}
	if cfg.diagnostics != nil {
		node.SetDiagnostics(cfg.diagnostics)
	}
	node.mu.Lock()
	node.metrics = cfg.metrics
	node.mu.Unlock()

	if cfg.parent != nil {
		if err := Attach(cfg.parent, node); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// ID returns the workflow's unique identifier.
func (w *Workflow[R]) ID() string { return w.id }

// Node returns the workflow's tree node.
func (w *Workflow[R]) Node() *Node { return w.node }

// Run executes the body inside the workflow's ambient scope and returns its
// result synchronously.
//
// The node moves idle → running, then to a terminal completed or failed.
// Any failure, returned error or panic, is converted to *WorkflowError
// carrying the state snapshot and log buffer accumulated to the failure
// point, except tree-integrity errors, which propagate unwrapped. Side
// effects committed before a failure (logs, state snapshots, attached
// children) stay in the tree; there is no rollback.
func (w *Workflow[R]) Run(ctx context.Context) (R, error) {
	var zero R

	w.node.setStatus(StatusRunning)
	w.metrics.workflowStarted()

	scope := &Scope{
		workflowID: w.id,
		node:       w.node,
		reflector:  w.reflector,
		backoff:    w.backoff,
		metrics:    w.metrics,
	}
	runCtx := WithScope(ctx, scope)

	result, err := runBody(runCtx, w.body)
	if err != nil {
		werr := w.wrapFailure(err)
		w.node.setStatus(StatusFailed)
		w.metrics.workflowFinished(StatusFailed)

		// Failures that already crossed a step/task boundary carried their
		// error event there; raw body failures emit theirs here.
		if _, already := err.(*WorkflowError); !already && !isTreeIntegrityError(err) {
			ev := newEvent(EventError, w.node)
			ev.Err = werr
			scope.EmitEvent(ev)
		}
		return zero, werr
	}

	w.node.setStatus(StatusCompleted)
	w.metrics.workflowFinished(StatusCompleted)
	return result, nil
}

// runBody executes the body, converting a panic into a failure that keeps
// the captured stack.
func runBody[R any](ctx context.Context, body Body[R]) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &WorkflowError{
				Message: fmt.Sprintf("panic: %v", r),
				Stack:   string(debug.Stack()),
			}
		}
	}()
	return body(ctx)
}

// wrapFailure converts a body failure into *WorkflowError.
//
// Tree-integrity errors pass through unwrapped. An existing *WorkflowError
// from a nested boundary passes through unchanged so aggregates and
// rethrown child failures keep their identity; only its missing owner
// context is filled in.
func (w *Workflow[R]) wrapFailure(err error) error {
	if isTreeIntegrityError(err) {
		return err
	}
	if werr, ok := err.(*WorkflowError); ok {
		if werr.WorkflowID == "" {
			werr.WorkflowID = w.id
			werr.State = w.node.State()
			werr.Logs = w.node.Logs()
		}
		return werr
	}
	return &WorkflowError{
		Message:    err.Error(),
		Cause:      err,
		WorkflowID: w.id,
		Stack:      string(debug.Stack()),
		State:      w.node.State(),
		Logs:       w.node.Logs(),
	}
}
