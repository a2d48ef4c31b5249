// Package policy provides opt-in task wrappers for timeouts and retries.
//
// A circuit never times out or retries a task itself. Callers that want
// either wrap the task before declaring the step:
//
//	task := policy.Timeout(fetch, 2*time.Second)
//	task = policy.Retry(task, policy.RetryPolicy{
//	    MaxAttempts: 3,
//	    BaseDelay:   100 * time.Millisecond,
//	    MaxDelay:    time.Second,
//	    Retryable:   policy.IsTimeout,
//	})
//	err := b.Step(task)
package policy

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/dshills/activity-go/activity"
)

// ErrInvalidRetryPolicy is returned by RetryPolicy.Validate.
var ErrInvalidRetryPolicy = errors.New("invalid retry policy")

// RetryPolicy configures Retry.
type RetryPolicy struct {
	// MaxAttempts counts the initial attempt. Must be >= 1.
	MaxAttempts int

	// BaseDelay is the base of the exponential backoff between attempts.
	// The delay before retry n (zero-based) is min(BaseDelay * 2^n, MaxDelay)
	// plus a jitter below BaseDelay.
	BaseDelay time.Duration

	// MaxDelay caps the exponential part. Zero means no cap.
	MaxDelay time.Duration

	// Retryable reports whether an error is worth another attempt. A nil
	// predicate retries nothing.
	Retryable func(error) bool

	// Rand supplies jitter. A nil Rand uses the global source.
	Rand *rand.Rand
}

// Validate checks the policy.
func (rp RetryPolicy) Validate() error {
	if rp.MaxAttempts < 1 {
		return fmt.Errorf("%w: max attempts must be at least 1", ErrInvalidRetryPolicy)
	}
	if rp.BaseDelay < 0 || rp.MaxDelay < 0 {
		return fmt.Errorf("%w: delays cannot be negative", ErrInvalidRetryPolicy)
	}
	if rp.MaxDelay > 0 && rp.BaseDelay > 0 && rp.MaxDelay < rp.BaseDelay {
		return fmt.Errorf("%w: max delay is below base delay", ErrInvalidRetryPolicy)
	}
	return nil
}

func (rp RetryPolicy) backoff(attempt int) time.Duration {
	if rp.BaseDelay <= 0 {
		return 0
	}
	delay := rp.BaseDelay * (1 << attempt)
	if rp.MaxDelay > 0 && (delay > rp.MaxDelay || delay <= 0) {
		delay = rp.MaxDelay
	}

	var jitter time.Duration
	if rp.Rand != nil {
		jitter = time.Duration(rp.Rand.Int63n(int64(rp.BaseDelay)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(rp.BaseDelay))) // #nosec G404 -- retry jitter
	}
	return delay + jitter
}

// RetryError is returned when every attempt failed.
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error { return e.Err }

type retryTask struct {
	task   activity.Task
	policy RetryPolicy
}

// Retry returns a task that calls task again while it fails with a
// retryable error. Each attempt runs on its own copy of the context; only
// the writes of the attempt that returns are kept.
//
// Retry panics if rp does not validate.
func Retry(task activity.Task, rp RetryPolicy) activity.Task {
	if err := rp.Validate(); err != nil {
		panic(err)
	}
	return retryTask{task: task, policy: rp}
}

func (r retryTask) TaskName() string {
	name, _ := activity.TaskName(r.task)
	return name
}

func (r retryTask) Call(ctx context.Context, args activity.Args) (activity.Signal, activity.Args, error) {
	var lastErr error
	for attempt := 0; attempt < r.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(r.policy.backoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, args, ctx.Err()
			case <-timer.C:
			}
		}

		try := args
		if args.Ctx != nil {
			try.Ctx = activity.ContextFrom(args.Ctx.Vars())
		}
		sig, out, err := r.task.Call(ctx, try)
		if err == nil {
			return sig, keep(args, try, out), nil
		}

		lastErr = err
		if r.policy.Retryable == nil || !r.policy.Retryable(err) || ctx.Err() != nil {
			return nil, args, err
		}
	}
	return nil, args, &RetryError{Attempts: r.policy.MaxAttempts, Err: lastErr}
}

// keep copies what a successful attempt wrote back into the caller's
// context. A task that returned a different context keeps it.
func keep(args, try, out activity.Args) activity.Args {
	if args.Ctx == nil || (out.Ctx != nil && out.Ctx != try.Ctx) {
		return out
	}
	_, written := try.Ctx.Decompose()
	written.Each(func(k string, v any) { args.Ctx.Set(k, v) })
	out.Ctx = args.Ctx
	return out
}
