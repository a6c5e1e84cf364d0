package flow

import "context"

// Ambient execution context.
//
// Every workflow body runs inside a scope binding "current node" and a
// node-bound event sink to the logical call chain beneath it. The binding
// rides on context.Context, Go's stack-scoped carrier: nested scopes shadow
// the parent binding, and exiting a call (normally or via failure) restores
// the parent binding exactly, because the inner context simply goes out of
// scope. Concurrent siblings each derive their own context, so one sibling's
// binding is never visible from another's call stack.

type scopeKey struct{}

// Scope is the ambient binding: the current node plus the collaborators the
// owning workflow was constructed with.
type Scope struct {
	workflowID string
	node       *Node

	reflector Reflector
	backoff   BackoffPolicy
	metrics   *Metrics
}

// WorkflowID returns the id of the workflow this scope belongs to.
func (s *Scope) WorkflowID() string { return s.workflowID }

// Node returns the scope's current node.
func (s *Scope) Node() *Node { return s.node }

// Logger returns a logger bound to the scope's node.
func (s *Scope) Logger() *Logger { return NewLogger(s.node) }

// EmitEvent stamps ev with the scope's node and workflow id, appends it to
// the node's event buffer, and delivers it to the root observers.
func (s *Scope) EmitEvent(ev Event) {
	ev.Node = s.node
	ev.WorkflowID = s.workflowID
	s.node.appendEvent(ev)
}

// withNode derives a scope bound to a different node of the same workflow.
func (s *Scope) withNode(node *Node) *Scope {
	clone := *s
	clone.node = node
	return &clone
}

// WithScope returns a context carrying the scope. Entering a child scope
// shadows the parent binding for the subtree of calls using the returned
// context; the caller's context keeps the parent binding.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// Current returns the ambient scope bound to ctx.
//
// Code requiring the binding outside any scope fails fast with
// *MissingScopeError; a nil scope is never returned silently.
func Current(ctx context.Context) (*Scope, error) {
	return currentScope(ctx, "flow.Current")
}

// CurrentNode returns the current node bound to ctx.
func CurrentNode(ctx context.Context) (*Node, error) {
	s, err := currentScope(ctx, "flow.CurrentNode")
	if err != nil {
		return nil, err
	}
	return s.node, nil
}

// CurrentLogger returns a logger bound to the current node.
func CurrentLogger(ctx context.Context) (*Logger, error) {
	s, err := currentScope(ctx, "flow.CurrentLogger")
	if err != nil {
		return nil, err
	}
	return s.Logger(), nil
}

func currentScope(ctx context.Context, op string) (*Scope, error) {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	if s == nil {
		return nil, &MissingScopeError{Op: op}
	}
	return s, nil
}

// ChildScope derives a child binding from the ambient scope: same workflow
// id, a fresh node named name attached beneath the current node. Use it
// when spawning nested work from inside an existing scope.
//
// Called outside any scope it returns (nil, nil), meaning "no binding", rather
// than fabricating a root. A name violating the display-name contract
// returns *InvalidNameError.
func ChildScope(ctx context.Context, name string) (*Scope, error) {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	if s == nil {
		return nil, nil
	}

	node, err := NewNode(name)
	if err != nil {
		return nil, err
	}
	node.setWorkflowID(s.workflowID)
	if err := Attach(s.node, node); err != nil {
		return nil, err
	}
	return s.withNode(node), nil
}
