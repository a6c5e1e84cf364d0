package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestCurrent(t *testing.T) {
	t.Run("fails fast outside any scope", func(t *testing.T) {
		_, err := Current(context.Background())
		if err == nil {
			t.Fatal("expected error outside a scope")
		}
		var merr *MissingScopeError
		if !errors.As(err, &merr) {
			t.Fatalf("expected *MissingScopeError, got %T", err)
		}
		if merr.Op != "flow.Current" {
			t.Errorf("expected the failing operation named, got %q", merr.Op)
		}
	})

	t.Run("returns the bound scope", func(t *testing.T) {
		node, _ := NewNode("n")
		scope := &Scope{workflowID: "wf-1", node: node}
		ctx := WithScope(context.Background(), scope)

		got, err := Current(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if got != scope {
			t.Error("expected the same scope back")
		}
		if got.WorkflowID() != "wf-1" || got.Node() != node {
			t.Error("expected scope fields intact")
		}
	})

	t.Run("CurrentNode and CurrentLogger resolve through the scope", func(t *testing.T) {
		node, _ := NewNode("n")
		ctx := WithScope(context.Background(), &Scope{workflowID: "wf-1", node: node})

		got, err := CurrentNode(ctx)
		if err != nil || got != node {
			t.Fatalf("expected the bound node, got %v (%v)", got, err)
		}

		logger, err := CurrentLogger(ctx)
		if err != nil {
			t.Fatal(err)
		}
		logger.Info("hello", nil)
		if len(node.Logs()) != 1 {
			t.Error("expected the logger bound to the scope's node")
		}
	})
}

func TestScopeShadowing(t *testing.T) {
	// Entering a nested scope shadows the binding only for calls using the
	// derived context; the outer context keeps the outer binding.
	outerNode, _ := NewNode("outer")
	innerNode, _ := NewNode("inner")
	outer := &Scope{workflowID: "wf", node: outerNode}

	outerCtx := WithScope(context.Background(), outer)
	innerCtx := WithScope(outerCtx, outer.withNode(innerNode))

	if got, _ := CurrentNode(innerCtx); got != innerNode {
		t.Error("expected the inner binding on the derived context")
	}
	if got, _ := CurrentNode(outerCtx); got != outerNode {
		t.Error("expected the outer context to keep the outer binding")
	}
}

func TestScopeSiblingIsolation(t *testing.T) {
	// Concurrent siblings each derive their own context; one sibling's
	// binding must never leak into another's call chain.
	root, _ := NewNode("root")
	base := WithScope(context.Background(), &Scope{workflowID: "wf", node: root})

	const n = 8
	var wg sync.WaitGroup
	mismatches := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			scope, err := ChildScope(base, "sibling")
			if err != nil {
				mismatches <- err.Error()
				return
			}
			ctx := WithScope(base, scope)
			for j := 0; j < 100; j++ {
				got, err := CurrentNode(ctx)
				if err != nil || got != scope.Node() {
					mismatches <- "binding leaked across goroutines"
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(mismatches)

	for msg := range mismatches {
		t.Fatal(msg)
	}
	if len(root.Children()) != n {
		t.Errorf("expected %d attached siblings, got %d", n, len(root.Children()))
	}
}

func TestChildScope(t *testing.T) {
	t.Run("attaches a fresh node beneath the current one", func(t *testing.T) {
		root, _ := NewNode("root")
		ctx := WithScope(context.Background(), &Scope{workflowID: "wf", node: root})

		child, err := ChildScope(ctx, "sub-work")
		if err != nil {
			t.Fatal(err)
		}
		if child.WorkflowID() != "wf" {
			t.Error("expected the workflow id inherited")
		}
		if child.Node().Parent() != root {
			t.Error("expected the child node attached beneath the current node")
		}
		if child.Node().WorkflowID() != "wf" {
			t.Error("expected the node stamped with the workflow id")
		}
	})

	t.Run("outside any scope means no binding, not an error", func(t *testing.T) {
		scope, err := ChildScope(context.Background(), "sub-work")
		if scope != nil || err != nil {
			t.Errorf("expected (nil, nil), got (%v, %v)", scope, err)
		}
	})

	t.Run("invalid name is rejected", func(t *testing.T) {
		root, _ := NewNode("root")
		ctx := WithScope(context.Background(), &Scope{workflowID: "wf", node: root})

		_, err := ChildScope(ctx, "  ")
		if _, ok := err.(*InvalidNameError); !ok {
			t.Fatalf("expected *InvalidNameError, got %v", err)
		}
	})
}
