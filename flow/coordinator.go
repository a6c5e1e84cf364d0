package flow

import (
	"context"
	"fmt"
	"sync"
)

// Concurrency coordinator: fan-out/join over sibling workflows with an
// opt-in error-aggregation policy.
//
// The critical property is "wait for all regardless of individual outcome":
// a failing sibling never cancels or orphans the others, and partial-failure
// information is never silently dropped. Aggregate tie-breaks are defined
// over input order, keeping aggregation deterministic regardless of actual
// goroutine interleaving.

// defaultMaxMergeDepth bounds recursive flattening of nested aggregate
// errors when a merge strategy does not set its own guard.
const defaultMaxMergeDepth = 8

// ErrorMergeStrategy is the policy applied when concurrently executed child
// workflows fail.
//
// Disabled (the zero value), the first failure in input order is rethrown
// unchanged, the pre-aggregation behavior. Enabled, all failures are merged
// into a single aggregate *WorkflowError, either by Combine or by the
// default merger.
type ErrorMergeStrategy struct {
	// Enabled turns aggregation on.
	Enabled bool

	// Combine, when non-nil, replaces the default merger.
	Combine func(errs []error) *WorkflowError

	// MaxMergeDepth bounds how deep nested aggregates are flattened while
	// collecting failed workflow ids. Zero means defaultMaxMergeDepth.
	MaxMergeDepth int
}

// childOutcome is one slot of the join, indexed by input order.
type childOutcome[R any] struct {
	value R
	err   error
}

// runAll starts every child's run concurrently (in input order), waits for
// all of them to reach a terminal state, and partitions the outcomes.
//
// No failures: the fulfilled values are returned in input order. Failures
// with aggregation disabled: the first failure by input order is returned
// unchanged. Failures with aggregation enabled: one aggregate error is
// built. In every failure path an error event carrying the (aggregate or
// single) error is emitted through scope before returning.
func runAll[R any](ctx context.Context, scope *Scope, name string, children []*Workflow[R], strategy ErrorMergeStrategy) ([]R, error) {
	outcomes := make([]childOutcome[R], len(children))

	var wg sync.WaitGroup
	for i, child := range children {
		wg.Add(1)
		go func(slot int, w *Workflow[R]) {
			defer wg.Done()
			v, err := w.Run(ctx)
			outcomes[slot] = childOutcome[R]{value: v, err: err}
		}(i, child)
	}
	wg.Wait()

	var (
		values        []R
		failures      []error
		failedByInput []*Workflow[R]
	)
	for i, out := range outcomes {
		if out.err != nil {
			failures = append(failures, out.err)
			failedByInput = append(failedByInput, children[i])
			continue
		}
		values = append(values, out.value)
	}

	if len(failures) == 0 {
		return values, nil
	}

	var failErr error
	if !strategy.Enabled {
		failErr = failures[0]
	} else {
		failErr = mergeErrors(name, scope.WorkflowID(), failures, len(children), strategy)
	}

	ev := newEvent(EventError, scope.Node())
	ev.Name = name
	ev.Err = failErr
	scope.EmitEvent(ev)

	return nil, failErr
}

// mergeErrors builds one error representing every failing child.
//
// Exactly one failure is returned as-is, no synthetic wrapping. Otherwise
// the strategy's Combine runs if set, else the default merger:
//
//   - message: "k of n concurrent child workflows failed in task '<name>'"
//     with k failing children out of n total
//   - workflow id: the parent's
//   - FailedWorkflowIDs: deduplicated, order-preserving failing-child ids
//   - stack and state: from the first failing child (deterministic
//     tie-break over input order)
//   - logs: concatenation, in input order, of every failing child's logs
func mergeErrors(name, parentWorkflowID string, errs []error, total int, strategy ErrorMergeStrategy) error {
	if len(errs) == 1 {
		return errs[0]
	}
	if strategy.Combine != nil {
		return strategy.Combine(errs)
	}

	depth := strategy.MaxMergeDepth
	if depth <= 0 {
		depth = defaultMaxMergeDepth
	}

	agg := &WorkflowError{
		Message:    fmt.Sprintf("%d of %d concurrent child workflows failed in task '%s'", len(errs), total, name),
		WorkflowID: parentWorkflowID,
		Cause:      errs[0],
	}

	seen := make(map[string]bool)
	for _, err := range errs {
		werr, ok := err.(*WorkflowError)
		if !ok {
			continue
		}
		for _, id := range collectFailedIDs(werr, depth) {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			agg.FailedWorkflowIDs = append(agg.FailedWorkflowIDs, id)
		}
		agg.Logs = append(agg.Logs, werr.Logs...)
	}

	if first, ok := errs[0].(*WorkflowError); ok {
		agg.Stack = first.Stack
		agg.State = first.State
	}

	return agg
}

// collectFailedIDs gathers a failure's workflow ids, flattening nested
// aggregates up to depth levels.
func collectFailedIDs(werr *WorkflowError, depth int) []string {
	if len(werr.FailedWorkflowIDs) == 0 || depth <= 0 {
		return []string{werr.WorkflowID}
	}
	return werr.FailedWorkflowIDs
}
