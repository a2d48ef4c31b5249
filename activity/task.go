package activity

import "context"

// Task is the unit of work a row runs.
//
// A task receives the current context and flow options and returns the
// signal that selects the row's outgoing output, together with the
// (possibly updated) arguments. Tasks must not retain args after returning.
type Task interface {
	Call(ctx context.Context, args Args) (Signal, Args, error)
}

// TaskFunc is a function adapter that implements the Task interface.
type TaskFunc func(ctx context.Context, args Args) (Signal, Args, error)

// Call implements the Task interface for TaskFunc.
func (f TaskFunc) Call(ctx context.Context, args Args) (Signal, Args, error) {
	return f(ctx, args)
}

// Namer is implemented by tasks that carry a default row id.
type Namer interface {
	TaskName() string
}

type namedTask struct {
	Task
	name string
}

func (n namedTask) TaskName() string { return n.name }

// Named attaches a default row id to task.
func Named(name string, task Task) Task {
	return namedTask{Task: task, name: name}
}

// TaskName returns the default id of task, if it has one.
func TaskName(task Task) (string, bool) {
	if n, ok := task.(Namer); ok && n.TaskName() != "" {
		return n.TaskName(), true
	}
	return "", false
}

// StepFunc is the keyword-style step signature. data is the task's view of
// the context and may be written to; kw is a snapshot of it as keywords.
type StepFunc func(data *Context, kw Keywords) (any, error)

type stepTask struct {
	fn       StepFunc
	requires []string
}

// Step adapts a StepFunc into a Task. Keys listed in requires must be
// present in the context, otherwise the call fails with *MissingInputError.
//
// The step's result is turned into a signal by Binary.
//
// Example:
//
//	create := activity.Step(func(data *activity.Context, kw activity.Keywords) (any, error) {
//	    data.Set("model", "Object")
//	    return true, nil
//	})
func Step(fn StepFunc, requires ...string) Task {
	return &stepTask{fn: fn, requires: requires}
}

func (s *stepTask) Call(_ context.Context, args Args) (Signal, Args, error) {
	kw := args.Ctx.Keywords()
	if err := kw.RequireAll(s.requires...); err != nil {
		return nil, args, err
	}
	result, err := s.fn(args.Ctx, kw)
	if err != nil {
		return nil, args, err
	}
	return Binary(result), args, nil
}

// Binary maps a step result to a signal: a Signal passes through, a bool
// selects Right or Left, nil is Left and anything else is Right.
func Binary(result any) Signal {
	switch r := result.(type) {
	case Signal:
		return r
	case nil:
		return Left
	case bool:
		if r {
			return Right
		}
		return Left
	default:
		return Right
	}
}
