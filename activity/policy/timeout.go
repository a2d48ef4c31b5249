package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/activity-go/activity"
)

// TimeoutError reports a task that exceeded its time limit.
type TimeoutError struct {
	Task    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Task == "" {
		return fmt.Sprintf("task exceeded timeout of %v", e.Timeout)
	}
	return fmt.Sprintf("task %s exceeded timeout of %v", e.Task, e.Timeout)
}

// Is reports whether target is context.DeadlineExceeded.
func (e *TimeoutError) Is(target error) bool { return target == context.DeadlineExceeded }

// IsTimeout reports whether err is a *TimeoutError. It is a convenient
// RetryPolicy.Retryable.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

type timeoutTask struct {
	task    activity.Task
	timeout time.Duration
}

// Timeout returns a task that calls task with a context cancelled after d.
// A zero or negative d returns task unchanged.
//
// The task must observe its context: Timeout does not abandon a task that
// ignores cancellation.
func Timeout(task activity.Task, d time.Duration) activity.Task {
	if d <= 0 {
		return task
	}
	return timeoutTask{task: task, timeout: d}
}

func (t timeoutTask) TaskName() string {
	name, _ := activity.TaskName(t.task)
	return name
}

func (t timeoutTask) Call(ctx context.Context, args activity.Args) (activity.Signal, activity.Args, error) {
	tctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	sig, out, err := t.task.Call(tctx, args)
	if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, args, &TimeoutError{Task: t.TaskName(), Timeout: t.timeout}
	}
	return sig, out, err
}
