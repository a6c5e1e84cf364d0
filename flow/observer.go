package flow

import (
	"fmt"
	"os"
	"sync"

	"github.com/dshills/flowtree-go/flow/emit"
)

// Observer receives log, event, state, and tree-change callbacks for an
// entire workflow tree, regardless of where on the tree it was registered.
//
// Dispatch resolves to the root's observer set, and the four callback kinds
// fire in a fixed order per operation: OnLog, OnEvent, OnStateUpdated,
// OnTreeChanged. Attach and detach fire OnTreeChanged after OnEvent, passing
// the current root; consumers maintaining an incremental index treat it as a
// cue to re-derive only the affected subtree.
//
// A panicking observer never blocks delivery to the remaining observers for
// the same callback and never propagates into the emitting workflow; the
// panic is routed to the tree's fallback diagnostic channel.
type Observer interface {
	OnLog(entry LogEntry)
	OnEvent(event Event)
	OnStateUpdated(node *Node, state map[string]interface{})
	OnTreeChanged(root *Node)
}

// defaultDiagnostics is the fallback channel used when a tree has no
// explicit diagnostic emitter configured.
var (
	defaultDiagnostics     emit.Emitter
	defaultDiagnosticsOnce sync.Once
)

func diagnosticsFor(root *Node) emit.Emitter {
	root.mu.Lock()
	d := root.diagnostics
	root.mu.Unlock()
	if d != nil {
		return d
	}
	defaultDiagnosticsOnce.Do(func() {
		defaultDiagnostics = emit.NewLogEmitter(os.Stderr, false)
	})
	return defaultDiagnostics
}

func metricsFor(root *Node) *Metrics {
	root.mu.Lock()
	defer root.mu.Unlock()
	return root.metrics
}

// deliver invokes fn for every observer on origin's root, isolating
// panics per observer so one bad listener cannot starve the rest.
func deliver(origin *Node, callback string, fn func(Observer)) {
	root := origin.Root()
	observers := root.snapshotObservers()
	if len(observers) == 0 {
		return
	}
	diag := diagnosticsFor(root)
	metrics := metricsFor(root)

	for _, obs := range observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.observerPanicked()
					diag.Emit(emit.Record{
						WorkflowID: origin.WorkflowID(),
						NodeID:     origin.id,
						Kind:       "diagnostic",
						Msg:        "observer_panic",
						Meta: map[string]interface{}{
							"callback": callback,
							"error":    fmt.Sprintf("%v", r),
						},
					})
				}
			}()
			fn(obs)
		}()
	}
}

func dispatchLog(origin *Node, entry LogEntry) {
	deliver(origin, "OnLog", func(obs Observer) { obs.OnLog(entry) })
}

func dispatchEvent(origin *Node, ev Event) {
	deliver(origin, "OnEvent", func(obs Observer) { obs.OnEvent(ev) })
}

func dispatchStateUpdated(origin *Node, state map[string]interface{}) {
	deliver(origin, "OnStateUpdated", func(obs Observer) { obs.OnStateUpdated(origin, state) })
}

func dispatchTreeChanged(origin *Node) {
	root := origin.Root()
	deliver(origin, "OnTreeChanged", func(obs Observer) { obs.OnTreeChanged(root) })
}

// EmitterObserver adapts an emit.Emitter into an Observer, flattening every
// tree signal into emit.Record values. This is how tree observability
// reaches the pluggable backends: log writers, buffered capture, or
// OpenTelemetry spans.
type EmitterObserver struct {
	emitter emit.Emitter
}

// NewEmitterObserver wraps an emitter; a nil emitter is replaced with a
// NullEmitter.
func NewEmitterObserver(emitter emit.Emitter) *EmitterObserver {
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	return &EmitterObserver{emitter: emitter}
}

// OnLog forwards a log entry as a Record of kind "log".
func (eo *EmitterObserver) OnLog(entry LogEntry) {
	meta := map[string]interface{}{
		"level":  string(entry.Level),
		"log_id": entry.ID,
	}
	if entry.ParentLogID != "" {
		meta["parent_log_id"] = entry.ParentLogID
	}
	for k, v := range entry.Data {
		meta[k] = v
	}
	eo.emitter.Emit(emit.Record{
		NodeID: entry.NodeID,
		Kind:   "log",
		Msg:    entry.Message,
		Meta:   meta,
	})
}

// OnEvent forwards a workflow event as a Record of kind "event".
func (eo *EmitterObserver) OnEvent(event Event) {
	meta := map[string]interface{}{}
	if event.Name != "" {
		meta["name"] = event.Name
	}
	if event.ParentID != "" {
		meta["parent_id"] = event.ParentID
	}
	if event.ChildID != "" {
		meta["child_id"] = event.ChildID
	}
	if event.Key != "" {
		meta["key"] = event.Key
	}
	if event.Reason != "" {
		meta["reason"] = event.Reason
	}
	if event.Type == EventReflectionStart || event.Type == EventReflectionEnd {
		meta["attempt"] = event.Attempt
	}
	if event.Err != nil {
		meta["error"] = event.Err.Error()
	}

	rec := emit.Record{
		WorkflowID: event.WorkflowID,
		Kind:       "event",
		Msg:        string(event.Type),
		Meta:       meta,
	}
	if event.Node != nil {
		rec.NodeID = event.Node.ID()
	}
	eo.emitter.Emit(rec)
}

// OnStateUpdated forwards a state snapshot change as a Record of kind
// "state".
func (eo *EmitterObserver) OnStateUpdated(node *Node, state map[string]interface{}) {
	eo.emitter.Emit(emit.Record{
		WorkflowID: node.WorkflowID(),
		NodeID:     node.ID(),
		Kind:       "state",
		Msg:        "state_updated",
		Meta:       map[string]interface{}{"keys": len(state)},
	})
}

// OnTreeChanged forwards a topology change as a Record of kind "tree".
func (eo *EmitterObserver) OnTreeChanged(root *Node) {
	eo.emitter.Emit(emit.Record{
		WorkflowID: root.WorkflowID(),
		NodeID:     root.ID(),
		Kind:       "tree",
		Msg:        "tree_changed",
	})
}
