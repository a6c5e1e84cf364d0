package flow

// Tree operations: attach, detach, and cycle-aware traversals.
//
// Parent/child links are plain mutable references, not enforced-acyclic
// structures, so every traversal carries a seen-set and fails loudly with
// *CircularReferenceError on repeat visitation.

// Attach appends child to parent's children and sets the back-reference,
// then notifies root observers with a child_attached event followed by
// OnTreeChanged.
//
// The child must be orphaned: attaching a node that already has a parent
// returns *AlreadyAttachedError. No cycle check is needed here: a freshly
// created or detached child cannot already be an ancestor of its new parent.
func Attach(parent, child *Node) error {
	if parent == nil || child == nil {
		return &NotAttachedError{}
	}

	parent.mu.Lock()
	child.mu.Lock()
	if child.parent != nil {
		existing := child.parent.id
		child.mu.Unlock()
		parent.mu.Unlock()
		return &AlreadyAttachedError{ChildID: child.id, ParentID: existing}
	}
	parent.children = append(parent.children, child)
	child.parent = parent
	child.mu.Unlock()
	parent.mu.Unlock()

	ev := newEvent(EventChildAttached, child)
	ev.ParentID = parent.id
	ev.ChildID = child.id
	child.appendEvent(ev)
	dispatchTreeChanged(parent)
	return nil
}

// Detach removes child from parent's children and clears the
// back-reference, then notifies root observers with a child_detached event
// followed by OnTreeChanged.
//
// Returns *NotAttachedError if child is not among parent's children. The
// detached node keeps its own subtree; external indexes listening for the
// event must drop that entire subtree in the same operation.
func Detach(parent, child *Node) error {
	if parent == nil || child == nil {
		return &NotAttachedError{}
	}

	parent.mu.Lock()
	idx := -1
	for i, c := range parent.children {
		if c == child {
			idx = i
			break
		}
	}
	if idx < 0 {
		parent.mu.Unlock()
		return &NotAttachedError{ParentID: parent.id, ChildID: child.id}
	}
	parent.children = append(parent.children[:idx], parent.children[idx+1:]...)
	child.mu.Lock()
	child.parent = nil
	child.mu.Unlock()
	parent.mu.Unlock()

	// The child is orphaned now, so the event must be emitted through the
	// parent's tree where the observers live.
	ev := newEvent(EventChildDetached, child)
	ev.ParentID = parent.id
	ev.ChildID = child.id
	parent.mu.Lock()
	parent.events = append(parent.events, ev)
	parent.mu.Unlock()
	dispatchEvent(parent, ev)
	dispatchTreeChanged(parent)
	return nil
}

// IsDescendantOf reports whether node sits somewhere beneath candidate.
//
// The walk starts at node's immediate parent, so a node is never its own
// descendant. Reaching a nil parent without a match returns false.
// Revisiting a previously seen node returns *CircularReferenceError; a
// corrupted tree must never silently read as "not a descendant".
func IsDescendantOf(node, candidate *Node) (bool, error) {
	if node == nil || candidate == nil {
		return false, nil
	}

	seen := map[*Node]bool{node: true}
	cur := node.Parent()
	for cur != nil {
		if seen[cur] {
			return false, &CircularReferenceError{NodeID: cur.id}
		}
		seen[cur] = true
		if cur == candidate {
			return true, nil
		}
		cur = cur.Parent()
	}
	return false, nil
}

// AncestorChain returns node's ancestors ordered from immediate parent to
// root. A maxDepth > 0 truncates the chain; maxDepth <= 0 means unbounded.
// Uses the same cycle-aware walk as IsDescendantOf.
func AncestorChain(node *Node, maxDepth int) ([]*Node, error) {
	if node == nil {
		return nil, nil
	}

	var chain []*Node
	seen := map[*Node]bool{node: true}
	cur := node.Parent()
	for cur != nil {
		if seen[cur] {
			return nil, &CircularReferenceError{NodeID: cur.id}
		}
		seen[cur] = true
		chain = append(chain, cur)
		if maxDepth > 0 && len(chain) >= maxDepth {
			break
		}
		cur = cur.Parent()
	}
	return chain, nil
}
