// Package flow is a framework for building and executing hierarchical
// workflows: units of work that spawn child units of work, forming a tree
// whose nodes track status, logs, and structured events.
//
// Construction flows root-down (a workflow naming a parent attaches
// immediately) and observability flows leaf-up, bubbling every log entry
// and event to the observer set registered on the tree's root.
//
// The moving parts:
//
//   - Node: the tree-resident value tracking one unit of work.
//   - Attach/Detach/IsDescendantOf/AncestorChain: cycle-aware tree
//     operations that fail loudly on corrupted parent links.
//   - Observer: tree-global listeners for logs, events, state updates, and
//     topology changes; back them with flow/emit emitters for log output,
//     buffered capture, or OpenTelemetry spans.
//   - Workflow: the executable unit wrapping a node and a user body.
//   - Step/Task/CachedStep: explicit instrumentation wrappers providing
//     boundary events, error conversion, caching, and reflective retries.
//   - Task with Concurrent(): the fan-out/join coordinator that runs
//     sibling workflows in parallel, waits for all of them regardless of
//     individual outcome, and aggregates failures under an opt-in merge
//     policy.
//
// Scheduling is cooperative from the tree's point of view: every mutation
// of the one shared structure (attach, detach, log and event appends,
// status transitions) is atomic under a node mutex, so concurrent siblings
// never observe a half-updated node. Cancellation is not first-class; a
// workflow failing after spawning side effects leaves them committed, and
// timeouts are a caller concern via context deadlines.
package flow
