// Package varmap compiles In, Out and Inject declarations into task-wrap
// extensions, so that a step runs against a private, filtered view of the
// caller's context.
package varmap

import (
	"context"
	"sort"

	"github.com/dshills/activity-go/activity"
)

// Filter selects or computes variables. The set of filters is closed:
// KeyList, RenameMap, MethodRef, Callable and CircuitStep.
type Filter interface {
	isFilter()
}

// KeyList passes the listed keys through under the same name.
type KeyList []string

// Rename maps an outer name to an inner one (or an inner name to an outer
// one for Out).
type Rename struct {
	From string
	To   string
}

// RenameMap is an ordered list of renames.
type RenameMap []Rename

// MethodRef names a function in the builder's method set. It is resolved
// when the step is built, never at call time.
type MethodRef string

// Callable computes a mapping (for In, Out and unnamed Inject) or a single
// value (for InjectVar). Requires lists keywords that must be present.
type Callable struct {
	Fn       activity.StepFunc
	Requires []string
}

// CircuitStep computes a mapping from the raw circuit arguments.
type CircuitStep func(ctx context.Context, args activity.Args) (any, error)

// readKey reads one key from the source context.
type readKey struct {
	key string
}

// OuterFunc computes an Out mapping from the inner and the outer context.
type OuterFunc func(inner, outer *activity.Context, kw activity.Keywords) (map[string]any, error)

type outerFilter struct {
	fn OuterFunc
}

func (KeyList) isFilter()     {}
func (RenameMap) isFilter()   {}
func (MethodRef) isFilter()   {}
func (Callable) isFilter()    {}
func (CircuitStep) isFilter() {}
func (readKey) isFilter()     {}
func (outerFilter) isFilter() {}

// Keys returns a KeyList.
func Keys(keys ...string) KeyList { return KeyList(keys) }

// Renames returns a RenameMap from a plain map, ordered by source name.
func Renames(m map[string]string) RenameMap {
	from := make([]string, 0, len(m))
	for k := range m {
		from = append(from, k)
	}
	sort.Strings(from)
	out := make(RenameMap, 0, len(m))
	for _, k := range from {
		out = append(out, Rename{From: k, To: m[k]})
	}
	return out
}

// Func returns a Callable.
//
// Example:
//
//	varmap.In(varmap.Func(func(data *activity.Context, kw activity.Keywords) (any, error) {
//	    return map[string]any{"user": kw["current_user"]}, nil
//	}, "current_user"))
func Func(fn activity.StepFunc, requires ...string) Callable {
	return Callable{Fn: fn, Requires: requires}
}

// Methods is the set of named functions MethodRef filters and method tasks
// resolve against.
type Methods map[string]activity.StepFunc

// Resolve returns the function registered under name.
func (m Methods) Resolve(name string) (activity.StepFunc, error) {
	fn, ok := m[name]
	if !ok || fn == nil {
		return nil, &activity.ReferenceError{Kind: "method", ID: name}
	}
	return fn, nil
}
