package flow

import (
	"context"
	"time"

	"github.com/dshills/flowtree-go/flow/store"
)

// Instrumentation wrappers.
//
// Step and Task are the explicit replacements for method-level annotations:
// each takes a name, options, and a body and runs the body inside the
// ambient scope with boundary events, error conversion, and (for steps) the
// reflective retry loop. The wrapping is identical regardless of invocation
// syntax, so there is nothing reflection or code generation could add.

// TaskOptions configures a Task invocation.
type TaskOptions struct {
	// Concurrent runs the returned child workflows through the fan-out/join
	// coordinator instead of sequentially.
	Concurrent bool

	// Merge is the error-aggregation policy for concurrent failures.
	Merge ErrorMergeStrategy
}

// TaskOption mutates TaskOptions.
type TaskOption func(*TaskOptions)

// Concurrent marks the task's children for concurrent execution.
func Concurrent() TaskOption {
	return func(o *TaskOptions) { o.Concurrent = true }
}

// WithMerge sets the error-aggregation policy applied when concurrently
// executed children fail.
func WithMerge(s ErrorMergeStrategy) TaskOption {
	return func(o *TaskOptions) { o.Merge = s }
}

// Step runs body as an instrumented step inside the ambient scope.
//
// It emits step_start and step_end events around the body, converts any
// failure to *WorkflowError at the boundary, and, when the owning workflow
// carries an enabled Reflector, drives the reflective retry loop on
// failure. Outside any scope it fails fast with *MissingScopeError.
func Step[T any](ctx context.Context, name string, body func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	scope, err := currentScope(ctx, "flow.Step")
	if err != nil {
		return zero, err
	}

	startEv := newEvent(EventStepStart, scope.Node())
	startEv.Name = name
	scope.EmitEvent(startEv)

	started := time.Now()
	result, err := runStepAttempts(ctx, scope, name, body)

	status := "success"
	if err != nil {
		status = "error"
	}
	scope.metrics.recordStepLatency(name, time.Since(started), status)

	if err != nil {
		werr := wrapBoundaryFailure(scope, err)
		errEv := newEvent(EventError, scope.Node())
		errEv.Name = name
		errEv.Err = werr
		scope.EmitEvent(errEv)

		endEv := newEvent(EventStepEnd, scope.Node())
		endEv.Name = name
		scope.EmitEvent(endEv)
		return zero, werr
	}

	endEv := newEvent(EventStepEnd, scope.Node())
	endEv.Name = name
	scope.EmitEvent(endEv)
	return result, nil
}

// runStepAttempts executes the body, consulting the scope's reflector after
// each failure. Tree-integrity errors abort immediately; they signal a
// defect, not a condition reflection could repair.
func runStepAttempts[T any](ctx context.Context, scope *Scope, name string, body func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attempt := 0
	for {
		result, err := body(ctx)
		if err == nil {
			return result, nil
		}
		if isTreeIntegrityError(err) {
			return zero, err
		}

		r := scope.reflector
		if r == nil || !r.IsEnabled() {
			return zero, err
		}
		maxAttempts := r.MaxAttempts()
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		if attempt+1 >= maxAttempts {
			return zero, err
		}

		startEv := newEvent(EventReflectionStart, scope.Node())
		startEv.Name = name
		startEv.Attempt = attempt
		scope.EmitEvent(startEv)

		decision, rerr := r.Reflect(ctx, ReflectionContext{
			Name:    name,
			Attempt: attempt,
			Err:     err,
			State:   scope.Node().State(),
			Logs:    scope.Node().Logs(),
		})

		endEv := newEvent(EventReflectionEnd, scope.Node())
		endEv.Name = name
		endEv.Attempt = attempt
		endEv.Reason = decision.Reason
		scope.EmitEvent(endEv)

		if rerr != nil || !decision.ShouldRetry {
			return zero, err
		}

		if decision.RevisedInputs != nil {
			state := scope.Node().State()
			if state == nil {
				state = make(map[string]interface{}, len(decision.RevisedInputs))
			}
			for k, v := range decision.RevisedInputs {
				state[k] = v
			}
			scope.Node().SetState(state)
		}

		scope.metrics.reflectionRetried()

		if delay := computeBackoff(attempt, scope.backoff); delay > 0 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}
		attempt++
	}
}

// Task runs body as an instrumented task inside the ambient scope. The body
// returns the set of child workflows to execute.
//
// Sequential by default: children run in input order and the first failure
// stops the remainder. With the Concurrent option all children run through
// the fan-out/join coordinator: every child reaches a terminal state and
// stays attached regardless of its siblings, and failures are rethrown
// singly or aggregated per the merge strategy. Fulfilled values are
// returned in input order either way.
func Task[R any](ctx context.Context, name string, body func(ctx context.Context) ([]*Workflow[R], error), opts ...TaskOption) ([]R, error) {
	scope, err := currentScope(ctx, "flow.Task")
	if err != nil {
		return nil, err
	}

	var o TaskOptions
	for _, opt := range opts {
		opt(&o)
	}

	startEv := newEvent(EventTaskStart, scope.Node())
	startEv.Name = name
	scope.EmitEvent(startEv)

	children, err := body(ctx)
	if err != nil {
		werr := wrapBoundaryFailure(scope, err)
		errEv := newEvent(EventError, scope.Node())
		errEv.Name = name
		errEv.Err = werr
		scope.EmitEvent(errEv)

		emitTaskEnd(scope, name)
		return nil, werr
	}
	scope.metrics.recordTaskChildren(len(children))

	var values []R
	var runErr error
	if o.Concurrent {
		values, runErr = runAll(ctx, scope, name, children, o.Merge)
	} else {
		values, runErr = runSequential(ctx, scope, name, children)
	}

	emitTaskEnd(scope, name)
	if runErr != nil {
		return nil, runErr
	}
	return values, nil
}

// runSequential executes children one at a time in input order, stopping at
// the first failure. The error event precedes the return, matching the
// concurrent path.
func runSequential[R any](ctx context.Context, scope *Scope, name string, children []*Workflow[R]) ([]R, error) {
	values := make([]R, 0, len(children))
	for _, child := range children {
		v, err := child.Run(ctx)
		if err != nil {
			ev := newEvent(EventError, scope.Node())
			ev.Name = name
			ev.Err = err
			scope.EmitEvent(ev)
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func emitTaskEnd(scope *Scope, name string) {
	ev := newEvent(EventTaskEnd, scope.Node())
	ev.Name = name
	scope.EmitEvent(ev)
}

// wrapBoundaryFailure converts a failure crossing a step/task boundary into
// *WorkflowError carrying the scope node's context. Tree-integrity errors
// and already-wrapped failures pass through unchanged.
func wrapBoundaryFailure(scope *Scope, err error) error {
	if isTreeIntegrityError(err) {
		return err
	}
	if werr, ok := err.(*WorkflowError); ok {
		return werr
	}
	return &WorkflowError{
		Message:    err.Error(),
		Cause:      err,
		WorkflowID: scope.WorkflowID(),
		State:      scope.Node().State(),
		Logs:       scope.Node().Logs(),
	}
}

// CachedStep is a Step variant consulting a cache collaborator before
// running the body.
//
// A hit emits cache_hit and returns the cached value without executing the
// body; a miss emits cache_miss, runs the body as a normal instrumented
// step, and stores a successful result under key with the given ttl. Key
// derivation and eviction policy are the caller's concern; the cache is an
// opaque contract. Lookup errors degrade to a miss, and a failed Set is
// logged at warn level rather than failing the step.
func CachedStep[T any](ctx context.Context, name, key string, cache store.Cache[T], ttl time.Duration, body func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	scope, err := currentScope(ctx, "flow.CachedStep")
	if err != nil {
		return zero, err
	}

	if cache != nil {
		v, ok, err := cache.Get(ctx, key)
		if err == nil && ok {
			ev := newEvent(EventCacheHit, scope.Node())
			ev.Name = name
			ev.Key = key
			scope.EmitEvent(ev)
			scope.metrics.recordCacheLookup("hit")
			return v, nil
		}
	}

	ev := newEvent(EventCacheMiss, scope.Node())
	ev.Name = name
	ev.Key = key
	scope.EmitEvent(ev)
	scope.metrics.recordCacheLookup("miss")

	result, err := Step(ctx, name, body)
	if err != nil {
		return zero, err
	}
	if cache != nil {
		if serr := cache.Set(ctx, key, result, ttl); serr != nil {
			scope.Logger().Warn("cache set failed", map[string]interface{}{
				"key":   key,
				"error": serr.Error(),
			})
		}
	}
	return result, nil
}
