package varmap

import (
	"context"
	"fmt"
	"sort"

	"github.com/dshills/activity-go/activity"
)

// MissingPolicy says what a key read does when the key is absent.
type MissingPolicy int

const (
	// MissingError fails with *activity.MissingInputError.
	MissingError MissingPolicy = iota
	// MissingSkip leaves the variable unset.
	MissingSkip
	// MissingNil sets the variable to nil.
	MissingNil
)

// SetVariable is one mapping stage. It computes a value with Filter and
// writes it into the wrap aggregate under VariableName. An empty
// VariableName merges a mapping result key by key.
//
// With Conditional set, a variable already present in the source context
// is passed through and Filter is not called.
type SetVariable struct {
	VariableName string
	Name         string
	Filter       Filter
	OnMissing    MissingPolicy
	Conditional  bool
}

// Stage returns the pipeline stage running s under id.
func (s SetVariable) Stage(id string) activity.Stage {
	return activity.Stage{ID: id, Run: s.Run}
}

// Run implements activity.StageFunc. The source context is args.Ctx: the
// outer context for input stages and the inner one for output stages.
func (s SetVariable) Run(ctx context.Context, wrap activity.WrapContext, args activity.Args) (activity.WrapContext, activity.Args, error) {
	src := args.Ctx
	if s.Conditional && s.VariableName != "" {
		if v, ok := src.Get(s.VariableName); ok {
			wrap.Aggregate.Set(s.VariableName, v)
			return wrap, args, nil
		}
	}

	value, ok, err := s.compute(ctx, wrap, args)
	if err != nil || !ok {
		return wrap, args, err
	}

	if s.VariableName != "" {
		wrap.Aggregate.Set(s.VariableName, value)
		return wrap, args, nil
	}

	if value == nil {
		return wrap, args, nil
	}
	m, isMap := value.(map[string]any)
	if !isMap {
		return wrap, args, fmt.Errorf("variable mapping %q must return a map, got %T", s.Name, value)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		wrap.Aggregate.Set(k, m[k])
	}
	return wrap, args, nil
}

func (s SetVariable) compute(ctx context.Context, wrap activity.WrapContext, args activity.Args) (any, bool, error) {
	src := args.Ctx
	kw := keywords(src, wrap.Aggregate)

	switch f := s.Filter.(type) {
	case readKey:
		v, ok := src.Get(f.key)
		if ok {
			return v, true, nil
		}
		switch s.OnMissing {
		case MissingSkip:
			return nil, false, nil
		case MissingNil:
			return nil, true, nil
		default:
			return nil, false, &activity.MissingInputError{Key: s.VariableName, Source: f.key}
		}
	case Callable:
		if err := kw.RequireAll(f.Requires...); err != nil {
			return nil, false, err
		}
		v, err := f.Fn(activity.ContextFrom(src.Vars()), kw)
		return v, err == nil, err
	case CircuitStep:
		v, err := f(ctx, activity.Args{Ctx: activity.ContextFrom(src.Vars()), Flow: args.Flow})
		return v, err == nil, err
	case outerFilter:
		outer := wrap.Outer
		if outer == nil {
			outer = activity.NewContext(nil)
		}
		v, err := f.fn(activity.ContextFrom(src.Vars()), activity.ContextFrom(outer.Vars()), kw)
		if err != nil {
			return nil, false, err
		}
		return v, true, nil
	default:
		return nil, false, fmt.Errorf("unresolved filter %T for %q", s.Filter, s.Name)
	}
}

// keywords is the source context overlaid with what the aggregate holds so far.
func keywords(src *activity.Context, agg *activity.Vars) activity.Keywords {
	kw := src.Keywords()
	agg.Each(func(k string, v any) { kw[k] = v })
	return kw
}
