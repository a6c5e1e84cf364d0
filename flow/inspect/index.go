// Package inspect provides a read-only incremental index over a workflow
// tree for debugging and visualization.
//
// An Index implements flow.Observer and maintains itself from
// child_attached and child_detached events: a subtree add or a subtree
// remove per event, never a full rebuild. OnTreeChanged, fired after every
// topology event with the current root, is the cue that the incremental
// update for that operation is complete.
package inspect

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dshills/flowtree-go/flow"
)

// Index is an incrementally maintained node-by-id lookup over one workflow
// tree, with rendered tree/log views and status-count aggregates.
//
// Register it on the tree's root:
//
//	idx := inspect.NewIndex(root.Node())
//	root.Node().Observe(idx)
//
// The index never mutates the tree; it only reads node snapshots.
type Index struct {
	mu    sync.RWMutex
	root  *flow.Node
	nodes map[string]*flow.Node
}

// NewIndex creates an index seeded with root's current subtree.
func NewIndex(root *flow.Node) *Index {
	idx := &Index{
		root:  root,
		nodes: make(map[string]*flow.Node),
	}
	idx.addSubtree(root)
	return idx
}

// OnLog is a no-op; log entries live on their nodes and are rendered on
// demand.
func (idx *Index) OnLog(entry flow.LogEntry) {}

// OnEvent maintains the index from topology events. An attached child
// contributes its entire subtree; a detached child removes its entire
// subtree in the same operation.
func (idx *Index) OnEvent(event flow.Event) {
	switch event.Type {
	case flow.EventChildAttached:
		if event.Node != nil {
			idx.mu.Lock()
			idx.addSubtree(event.Node)
			idx.mu.Unlock()
		}
	case flow.EventChildDetached:
		if event.Node != nil {
			idx.mu.Lock()
			idx.removeSubtree(event.Node)
			idx.mu.Unlock()
		}
	}
}

// OnStateUpdated is a no-op; state snapshots are read from nodes on demand.
func (idx *Index) OnStateUpdated(node *flow.Node, state map[string]interface{}) {}

// OnTreeChanged is the post-topology cue. The incremental update already
// happened in OnEvent, so nothing remains to re-derive.
func (idx *Index) OnTreeChanged(root *flow.Node) {}

// addSubtree indexes node and every transitive descendant.
// Callers hold idx.mu; NewIndex calls it before the index is shared.
func (idx *Index) addSubtree(node *flow.Node) {
	idx.nodes[node.ID()] = node
	for _, child := range node.Children() {
		idx.addSubtree(child)
	}
}

// removeSubtree drops node and every transitive descendant.
func (idx *Index) removeSubtree(node *flow.Node) {
	delete(idx.nodes, node.ID())
	for _, child := range node.Children() {
		idx.removeSubtree(child)
	}
}

// Node returns the indexed node with the given id.
func (idx *Index) Node(id string) (*flow.Node, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	node, ok := idx.nodes[id]
	return node, ok
}

// Len returns the number of indexed nodes.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.nodes)
}

// StatusCounts returns how many indexed nodes currently hold each status.
func (idx *Index) StatusCounts() map[flow.Status]int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	counts := make(map[flow.Status]int)
	for _, node := range idx.nodes {
		counts[node.Status()]++
	}
	return counts
}

// RenderTree returns an indented text rendering of the tree from the
// index's root, one node per line:
//
//	fetch-orders [running]
//	  fetch-page-1 [completed]
//	  fetch-page-2 [failed]
func (idx *Index) RenderTree() string {
	idx.mu.RLock()
	root := idx.root
	idx.mu.RUnlock()

	var b strings.Builder
	renderNode(&b, root, 0)
	return b.String()
}

func renderNode(b *strings.Builder, node *flow.Node, depth int) {
	fmt.Fprintf(b, "%s%s [%s]\n", strings.Repeat("  ", depth), node.Name(), node.Status())
	for _, child := range node.Children() {
		renderNode(b, child, depth+1)
	}
}

// RenderLogs returns the logs of every indexed node, grouped per node and
// ordered by node name for stable output:
//
//	fetch-page-1:
//	  [info] requesting page
//	  [warn] retrying after 429
func (idx *Index) RenderLogs() string {
	idx.mu.RLock()
	nodes := make([]*flow.Node, 0, len(idx.nodes))
	for _, node := range idx.nodes {
		nodes = append(nodes, node)
	}
	idx.mu.RUnlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name() < nodes[j].Name() })

	var b strings.Builder
	for _, node := range nodes {
		logs := node.Logs()
		if len(logs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s:\n", node.Name())
		for _, entry := range logs {
			fmt.Fprintf(&b, "  [%s] %s\n", entry.Level, entry.Message)
		}
	}
	return b.String()
}
