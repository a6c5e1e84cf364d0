package flow

import (
	"context"
	"math/rand"
	"time"
)

// Reflector is the reflection collaborator driving the retry heuristic for
// failed steps. The heuristic engine itself lives outside this module; the
// step retry loop only consults this contract.
//
// When a step body fails and the workflow carries an enabled reflector, the
// loop emits reflection_start, calls Reflect with the failure context, emits
// reflection_end, and retries the body while the decision says to and
// attempts remain. Tree-integrity errors are never offered for reflection.
type Reflector interface {
	// IsEnabled reports whether reflection should run at all.
	IsEnabled() bool

	// MaxAttempts is the total number of body executions allowed,
	// including the initial attempt. Values below 1 are treated as 1.
	MaxAttempts() int

	// Reflect inspects a failure and decides whether to retry.
	Reflect(ctx context.Context, rc ReflectionContext) (ReflectionDecision, error)
}

// ReflectionContext is the failure context handed to a Reflector.
type ReflectionContext struct {
	// Name is the failing step's name.
	Name string

	// Attempt is the zero-based index of the attempt that just failed.
	Attempt int

	// Err is the failure, already converted to *WorkflowError.
	Err error

	// State is the current node's state snapshot.
	State map[string]interface{}

	// Logs is the current node's log buffer.
	Logs []LogEntry
}

// ReflectionDecision is a Reflector's verdict on a failed attempt.
type ReflectionDecision struct {
	// ShouldRetry requests another body execution.
	ShouldRetry bool

	// RevisedInputs, when non-nil, is merged into the current node's state
	// snapshot before the retry so the body can pick up corrections.
	RevisedInputs map[string]interface{}

	// Reason explains the decision; carried on the reflection_end event.
	Reason string
}

// BackoffPolicy configures the delay between reflective retries:
// exponential backoff with jitter, delay = min(BaseDelay * 2^attempt,
// MaxDelay) + jitter(0, BaseDelay).
type BackoffPolicy struct {
	// BaseDelay is the base for the exponential calculation.
	// Zero disables the delay entirely.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth. Zero means no cap.
	MaxDelay time.Duration
}

// computeBackoff calculates the delay before retrying a failed attempt.
// The jitter randomizes retry timing across concurrent siblings so they do
// not wake in lockstep.
func computeBackoff(attempt int, policy BackoffPolicy) time.Duration {
	if policy.BaseDelay <= 0 {
		return 0
	}

	delay := policy.BaseDelay * (1 << attempt)
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}

	// Jitter timing only, not security sensitive.
	jitter := time.Duration(rand.Int63n(int64(policy.BaseDelay))) // #nosec G404
	return delay + jitter
}
