package main

import (
	"context"

	"github.com/dshills/activity-go/activity"
	"github.com/dshills/activity-go/activity/declare"
)

// builtins returns the registry documents run against. Every builtin task
// emits a fixed signal, which is enough to exercise wiring from the CLI.
func builtins() *declare.Registry {
	reg := declare.NewRegistry()
	for name, sig := range map[string]activity.Signal{
		"signal.right":     activity.Right,
		"signal.left":      activity.Left,
		"signal.pass_fast": activity.PassFast,
		"signal.fail_fast": activity.FailFast,
	} {
		_ = reg.RegisterTask(name, activity.Named(name, emitSignal(sig)))
	}
	return reg
}

func emitSignal(sig activity.Signal) activity.TaskFunc {
	return func(_ context.Context, args activity.Args) (activity.Signal, activity.Args, error) {
		return sig, args, nil
	}
}
