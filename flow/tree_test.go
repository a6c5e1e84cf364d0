package flow

import (
	"testing"
)

func TestAttach(t *testing.T) {
	t.Run("links parent and child both ways", func(t *testing.T) {
		parent, _ := NewNode("parent")
		child, _ := NewNode("child")

		if err := Attach(parent, child); err != nil {
			t.Fatalf("Attach failed: %v", err)
		}
		if child.Parent() != parent {
			t.Error("expected child's parent back-reference to be set")
		}
		children := parent.Children()
		if len(children) != 1 || children[0] != child {
			t.Error("expected child in parent's children list")
		}
	})

	t.Run("preserves attachment order", func(t *testing.T) {
		parent, _ := NewNode("parent")
		a, _ := NewNode("a")
		b, _ := NewNode("b")
		c, _ := NewNode("c")
		for _, n := range []*Node{a, b, c} {
			if err := Attach(parent, n); err != nil {
				t.Fatal(err)
			}
		}
		children := parent.Children()
		if children[0] != a || children[1] != b || children[2] != c {
			t.Error("expected children in attachment order")
		}
	})

	t.Run("rejects a child that already has a parent", func(t *testing.T) {
		p1, _ := NewNode("p1")
		p2, _ := NewNode("p2")
		child, _ := NewNode("child")
		if err := Attach(p1, child); err != nil {
			t.Fatal(err)
		}

		err := Attach(p2, child)
		if err == nil {
			t.Fatal("expected error attaching an already-attached child")
		}
		aerr, ok := err.(*AlreadyAttachedError)
		if !ok {
			t.Fatalf("expected *AlreadyAttachedError, got %T", err)
		}
		if aerr.ChildID != child.ID() || aerr.ParentID != p1.ID() {
			t.Error("expected error to name the child and its existing parent")
		}
	})

	t.Run("records a child_attached event on the child", func(t *testing.T) {
		parent, _ := NewNode("parent")
		child, _ := NewNode("child")
		if err := Attach(parent, child); err != nil {
			t.Fatal(err)
		}

		events := child.Events()
		if len(events) != 1 {
			t.Fatalf("expected 1 event on the child, got %d", len(events))
		}
		ev := events[0]
		if ev.Type != EventChildAttached {
			t.Errorf("expected child_attached, got %s", ev.Type)
		}
		if ev.ParentID != parent.ID() || ev.ChildID != child.ID() {
			t.Error("expected event to identify the affected edge")
		}
		if ev.Node != child {
			t.Error("expected event's node to be the attached child")
		}
	})
}

func TestDetach(t *testing.T) {
	t.Run("unlinks both directions", func(t *testing.T) {
		parent, _ := NewNode("parent")
		child, _ := NewNode("child")
		if err := Attach(parent, child); err != nil {
			t.Fatal(err)
		}

		if err := Detach(parent, child); err != nil {
			t.Fatalf("Detach failed: %v", err)
		}
		if child.Parent() != nil {
			t.Error("expected child's parent cleared")
		}
		if len(parent.Children()) != 0 {
			t.Error("expected child removed from parent's children")
		}
	})

	t.Run("rejects a child that is not attached", func(t *testing.T) {
		parent, _ := NewNode("parent")
		stranger, _ := NewNode("stranger")

		err := Detach(parent, stranger)
		if err == nil {
			t.Fatal("expected error detaching an unattached child")
		}
		nerr, ok := err.(*NotAttachedError)
		if !ok {
			t.Fatalf("expected *NotAttachedError, got %T", err)
		}
		if nerr.ParentID != parent.ID() || nerr.ChildID != stranger.ID() {
			t.Error("expected error to identify parent and child")
		}
	})

	t.Run("detached node keeps its own subtree", func(t *testing.T) {
		root, _ := NewNode("root")
		mid, _ := NewNode("mid")
		leaf, _ := NewNode("leaf")
		if err := Attach(root, mid); err != nil {
			t.Fatal(err)
		}
		if err := Attach(mid, leaf); err != nil {
			t.Fatal(err)
		}

		if err := Detach(root, mid); err != nil {
			t.Fatal(err)
		}
		if leaf.Parent() != mid {
			t.Error("expected detached subtree to stay intact below mid")
		}
		if mid.Root() != mid {
			t.Error("expected mid to be the root of its own detached subtree")
		}
	})

	t.Run("records a child_detached event on the parent", func(t *testing.T) {
		parent, _ := NewNode("parent")
		child, _ := NewNode("child")
		if err := Attach(parent, child); err != nil {
			t.Fatal(err)
		}
		if err := Detach(parent, child); err != nil {
			t.Fatal(err)
		}

		// The orphaned child is outside the tree; the event lives where the
		// observers do.
		var found bool
		for _, ev := range parent.Events() {
			if ev.Type == EventChildDetached && ev.ChildID == child.ID() {
				found = true
			}
		}
		if !found {
			t.Error("expected child_detached event in the parent's buffer")
		}
	})
}

func TestIsDescendantOf(t *testing.T) {
	root, _ := NewNode("root")
	mid, _ := NewNode("mid")
	leaf, _ := NewNode("leaf")
	sibling, _ := NewNode("sibling")
	if err := Attach(root, mid); err != nil {
		t.Fatal(err)
	}
	if err := Attach(mid, leaf); err != nil {
		t.Fatal(err)
	}
	if err := Attach(root, sibling); err != nil {
		t.Fatal(err)
	}

	t.Run("direct child", func(t *testing.T) {
		ok, err := IsDescendantOf(mid, root)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Error("expected mid to be a descendant of root")
		}
	})

	t.Run("transitive", func(t *testing.T) {
		ok, err := IsDescendantOf(leaf, root)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Error("expected leaf to be a transitive descendant of root")
		}
	})

	t.Run("never reflexive", func(t *testing.T) {
		ok, err := IsDescendantOf(root, root)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("a node must never be its own descendant")
		}
	})

	t.Run("not downward", func(t *testing.T) {
		ok, err := IsDescendantOf(root, leaf)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("an ancestor is not a descendant")
		}
	})

	t.Run("not across siblings", func(t *testing.T) {
		ok, err := IsDescendantOf(leaf, sibling)
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Error("siblings' subtrees are unrelated")
		}
	})

	t.Run("cycle surfaces as an error not a boolean", func(t *testing.T) {
		a, _ := NewNode("a")
		b, _ := NewNode("b")
		a.parent = b
		b.parent = a

		_, err := IsDescendantOf(a, root)
		if err == nil {
			t.Fatal("expected error on a corrupted cyclic chain")
		}
		if _, ok := err.(*CircularReferenceError); !ok {
			t.Errorf("expected *CircularReferenceError, got %T", err)
		}
	})
}

func TestAncestorChain(t *testing.T) {
	root, _ := NewNode("root")
	mid, _ := NewNode("mid")
	leaf, _ := NewNode("leaf")
	if err := Attach(root, mid); err != nil {
		t.Fatal(err)
	}
	if err := Attach(mid, leaf); err != nil {
		t.Fatal(err)
	}

	t.Run("ordered parent to root", func(t *testing.T) {
		chain, err := AncestorChain(leaf, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(chain) != 2 || chain[0] != mid || chain[1] != root {
			t.Errorf("expected [mid root], got %d ancestors", len(chain))
		}
	})

	t.Run("maxDepth truncates", func(t *testing.T) {
		chain, err := AncestorChain(leaf, 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(chain) != 1 || chain[0] != mid {
			t.Error("expected only the immediate parent")
		}
	})

	t.Run("root has no ancestors", func(t *testing.T) {
		chain, err := AncestorChain(root, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(chain) != 0 {
			t.Errorf("expected empty chain, got %d", len(chain))
		}
	})

	t.Run("cycle surfaces as an error", func(t *testing.T) {
		a, _ := NewNode("a")
		b, _ := NewNode("b")
		a.parent = b
		b.parent = a

		_, err := AncestorChain(a, 0)
		if _, ok := err.(*CircularReferenceError); !ok {
			t.Fatalf("expected *CircularReferenceError, got %v", err)
		}
	})
}
