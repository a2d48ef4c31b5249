// Package script runs JavaScript filters and tasks with goja.
//
// A script is the body of a function: it sees the task's context as ctx,
// every keyword as a global variable, and returns its result with return.
// Programs are compiled once; each run gets a fresh runtime, so concurrent
// runs never share state.
//
// Example:
//
//	in, _ := script.Map(`return {user: current_user.toUpperCase()}`, "current_user")
//	b.Step(policy, dsl.In(in))
package script

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/dshills/activity-go/activity"
	"github.com/dshills/activity-go/activity/varmap"
)

// Program is a compiled script.
type Program struct {
	src  string
	prog *goja.Program
}

// Compile compiles src as a function body.
func Compile(src string) (*Program, error) {
	prog, err := goja.Compile("script", "(function() {\n"+src+"\n})()", false)
	if err != nil {
		return nil, fmt.Errorf("compile script: %w", err)
	}
	return &Program{src: src, prog: prog}, nil
}

// Source returns the script source.
func (p *Program) Source() string { return p.src }

// Env is what a run sees.
type Env struct {
	// Data is exposed as ctx. Writes go to it through ctx.set.
	Data *activity.Context

	// Outer, when set, is exposed read-only as outer.
	Outer *activity.Context

	// Keywords become global variables.
	Keywords activity.Keywords

	// Flow is exposed as flow.
	Flow activity.FlowOptions
}

// Run executes the program and returns its exported result. Cancelling ctx
// interrupts a running script.
func (p *Program) Run(ctx context.Context, env Env) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rt := goja.New()
	stop := context.AfterFunc(ctx, func() { rt.Interrupt(ctx.Err()) })
	defer stop()

	for _, sig := range []struct {
		name string
		sig  activity.Signal
	}{
		{"Right", activity.Right},
		{"Left", activity.Left},
		{"PassFast", activity.PassFast},
		{"FailFast", activity.FailFast},
	} {
		if err := rt.Set(sig.name, sig.sig); err != nil {
			return nil, err
		}
	}

	for k, v := range env.Keywords {
		if !isIdentifier(k) {
			continue
		}
		if err := rt.Set(k, v); err != nil {
			return nil, fmt.Errorf("set keyword %s: %w", k, err)
		}
	}

	data := env.Data
	if data == nil {
		data = activity.NewContext(nil)
	}
	if err := rt.Set("ctx", contextObject(rt, data, false)); err != nil {
		return nil, err
	}
	if env.Outer != nil {
		if err := rt.Set("outer", contextObject(rt, env.Outer, true)); err != nil {
			return nil, err
		}
	}
	flow := map[string]any(env.Flow)
	if flow == nil {
		flow = map[string]any{}
	}
	if err := rt.Set("flow", flow); err != nil {
		return nil, err
	}

	v, err := rt.RunProgram(p.prog)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("run script: %w", err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

func contextObject(rt *goja.Runtime, data *activity.Context, readOnly bool) *goja.Object {
	obj := rt.NewObject()
	_ = obj.Set("get", func(key string) any { return data.Value(key) })
	_ = obj.Set("has", func(key string) bool { return data.Has(key) })
	_ = obj.Set("keys", func() []string { return data.Keys() })
	_ = obj.Set("set", func(key string, value goja.Value) {
		if readOnly {
			panic(rt.NewTypeError("outer context is read-only"))
		}
		data.Set(key, value.Export())
	})
	return obj
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || r == '$':
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Map returns an In, Out or Inject filter computing a mapping with src.
// The script must return an object.
func Map(src string, requires ...string) (varmap.Callable, error) {
	p, err := Compile(src)
	if err != nil {
		return varmap.Callable{}, err
	}
	return varmap.Func(func(data *activity.Context, kw activity.Keywords) (any, error) {
		v, err := p.Run(context.Background(), Env{Data: data, Keywords: kw})
		if err != nil {
			return nil, err
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("script must return an object, got %T", v)
		}
		return m, nil
	}, requires...), nil
}

// Value returns a filter computing a single value with src, for
// varmap.InjectVar.
func Value(src string, requires ...string) (varmap.Callable, error) {
	p, err := Compile(src)
	if err != nil {
		return varmap.Callable{}, err
	}
	return varmap.Func(func(data *activity.Context, kw activity.Keywords) (any, error) {
		return p.Run(context.Background(), Env{Data: data, Keywords: kw})
	}, requires...), nil
}

// Step returns a circuit-step filter: src also sees the flow options and
// runs under the invocation's context.
func Step(src string) (varmap.CircuitStep, error) {
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, args activity.Args) (any, error) {
		return p.Run(ctx, Env{Data: args.Ctx, Keywords: args.Ctx.Keywords(), Flow: args.Flow})
	}, nil
}

// OuterMap returns an Out function for varmap.OutWithOuter. src sees the
// inner context as ctx and the outer one as outer.
func OuterMap(src string) (varmap.OuterFunc, error) {
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return func(inner, outer *activity.Context, kw activity.Keywords) (map[string]any, error) {
		v, err := p.Run(context.Background(), Env{Data: inner, Outer: outer, Keywords: kw})
		if err != nil {
			return nil, err
		}
		m, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("script must return an object, got %T", v)
		}
		return m, nil
	}, nil
}

type task struct {
	name string
	p    *Program
}

// Task returns a named task running src. The script's result becomes the
// signal as activity.Binary maps it; returning Right, Left, PassFast or
// FailFast selects that signal.
func Task(name, src string) (activity.Task, error) {
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return &task{name: name, p: p}, nil
}

func (t *task) TaskName() string { return t.name }

func (t *task) Call(ctx context.Context, args activity.Args) (activity.Signal, activity.Args, error) {
	v, err := t.p.Run(ctx, Env{Data: args.Ctx, Keywords: args.Ctx.Keywords(), Flow: args.Flow})
	if err != nil {
		return nil, args, fmt.Errorf("task %s: %w", t.name, err)
	}
	return activity.Binary(v), args, nil
}
