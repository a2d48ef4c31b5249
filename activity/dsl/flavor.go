// Package dsl builds activities step by step.
//
// A Builder starts from a flavor's initial sequence and inserts one row per
// declared step. Each declaration is turned into a row by the flavor's
// normalizer, which is itself a compiled activity over the step options.
//
// Example:
//
//	b, _ := dsl.New(dsl.Railway, dsl.WithName("create"))
//	_ = b.Step(dsl.Method("create_model"))
//	_ = b.Step(policy, dsl.In(varmap.Renames(map[string]string{"current_user": "user"})))
//	_ = b.Fail(logError)
//	act, err := b.Build()
package dsl

import (
	"fmt"
	"sync"

	"github.com/dshills/activity-go/activity"
)

// StepKind selects the normalizer used for a step.
type StepKind string

// Step kinds.
const (
	KindStep StepKind = "step"
	KindFail StepKind = "fail"
	KindPass StepKind = "pass"
)

// Flavor is the configuration of one DSL: its initial sequence and the
// normalizers that turn step options into rows.
//
// Flavors are values, not types. Path, Railway and FastTrack share the
// same builder.
type Flavor struct {
	name        string
	ends        []string
	normalizers func() (map[StepKind]*Normalizer, error)
}

// Built-in flavors.
var (
	// Path has a single success track ending in End.success.
	Path = newFlavor("path", []string{"success"}, pathNormalizers)

	// Railway adds a failure track ending in End.failure.
	Railway = newFlavor("railway", []string{"success", "failure"}, railwayNormalizers)

	// FastTrack adds the pass_fast and fail_fast termini.
	FastTrack = newFlavor("fast_track", []string{"success", "failure", "pass_fast", "fail_fast"}, fastTrackNormalizers)
)

func newFlavor(name string, ends []string, build func(flavor string) (map[StepKind]*Normalizer, error)) *Flavor {
	return &Flavor{
		name:        name,
		ends:        ends,
		normalizers: sync.OnceValues(func() (map[StepKind]*Normalizer, error) { return build(name) }),
	}
}

// Name returns the flavor name.
func (f *Flavor) Name() string { return f.name }

// InitialSequence returns a fresh start sequence: Start.default followed by
// one End row per terminus of the flavor.
func (f *Flavor) InitialSequence() (activity.Sequence, error) {
	return initialSequence(f.ends...)
}

func initialSequence(ends ...string) (activity.Sequence, error) {
	rows := []*activity.Row{activity.StartRow("Start.default")}
	for _, sem := range ends {
		rows = append(rows, activity.EndRow("End."+sem, activity.NewEnd(sem), sem))
	}
	return activity.NewSequence(rows...)
}

// Normalizers returns the compiled normalizers of the flavor. They are
// built on first use and shared afterwards.
func (f *Flavor) Normalizers() (map[StepKind]*Normalizer, error) {
	return f.normalizers()
}

// Normalizer returns the normalizer for kind.
func (f *Flavor) Normalizer(kind StepKind) (*Normalizer, error) {
	all, err := f.Normalizers()
	if err != nil {
		return nil, err
	}
	n, ok := all[kind]
	if !ok {
		return nil, fmt.Errorf("flavor %s has no %s normalizer", f.name, kind)
	}
	return n, nil
}

func pathNormalizers(flavor string) (map[StepKind]*Normalizer, error) {
	n, err := compileNormalizer(flavor, KindStep, pathSteps)
	if err != nil {
		return nil, err
	}
	return map[StepKind]*Normalizer{KindStep: n}, nil
}

func railwayNormalizers(flavor string) (map[StepKind]*Normalizer, error) {
	return compileKinds(flavor, railwaySteps)
}

func fastTrackNormalizers(flavor string) (map[StepKind]*Normalizer, error) {
	return compileKinds(flavor, func(kind StepKind) (activity.Sequence, error) {
		seq, err := railwaySteps(kind)
		if err != nil {
			return activity.Sequence{}, err
		}
		return fastTrackSteps(seq)
	})
}

func compileKinds(flavor string, build func(StepKind) (activity.Sequence, error)) (map[StepKind]*Normalizer, error) {
	out := make(map[StepKind]*Normalizer, 3)
	for _, kind := range []StepKind{KindStep, KindFail, KindPass} {
		n, err := compileNormalizer(flavor, kind, build)
		if err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, nil
}
