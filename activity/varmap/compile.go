package varmap

import (
	"context"
	"fmt"

	"github.com/dshills/activity-go/activity"
)

// Stage ids inside the input and output pipelines.
const (
	StageDefaultInput  = "input.default_input"
	StageInputScope    = "input.scope"
	StageDefaultOutput = "output.default_output"
	StageOutputScope   = "output.scope"
)

// Compile turns decls into the two task-wrap extensions of a row: an input
// stage before the task and an output stage after it. No declarations
// means no extensions. Method references are resolved against methods.
//
// Input order: the whole outer context when no In is declared, then every
// In in declaration order, then every Inject. Output: the task's writes
// when no Out is declared, otherwise every Out in order.
func Compile(decls []Declaration, methods Methods) ([]activity.Extension, error) {
	if len(decls) == 0 {
		return nil, nil
	}

	input, err := InputPipeline(decls, methods)
	if err != nil {
		return nil, err
	}
	output, err := OutputPipeline(decls, methods)
	if err != nil {
		return nil, err
	}

	return []activity.Extension{
		{Placement: activity.Before(activity.StageCallTask), Stage: activity.Stage{ID: activity.StageInput, Run: input.Run}},
		{Placement: activity.After(activity.StageCallTask), Stage: activity.Stage{ID: activity.StageOutput, Run: output.Run}},
	}, nil
}

// InputPipeline returns the stages that build the inner context.
func InputPipeline(decls []Declaration, methods Methods) (activity.Pipeline, error) {
	var stages []activity.Stage
	if !has(decls, KindIn) {
		stages = append(stages, activity.Stage{ID: StageDefaultInput, Run: defaultInput})
	}
	for _, kind := range []Kind{KindIn, KindInject} {
		more, err := setVariableStages(decls, kind, methods, len(stages))
		if err != nil {
			return activity.Pipeline{}, err
		}
		stages = append(stages, more...)
	}
	stages = append(stages, activity.Stage{ID: StageInputScope, Run: inputScope})
	return activity.NewPipeline(stages...)
}

// OutputPipeline returns the stages that merge the task's results back
// into the outer context.
func OutputPipeline(decls []Declaration, methods Methods) (activity.Pipeline, error) {
	var stages []activity.Stage
	if !has(decls, KindOut) {
		stages = append(stages, activity.Stage{ID: StageDefaultOutput, Run: defaultOutput})
	}
	more, err := setVariableStages(decls, KindOut, methods, len(stages))
	if err != nil {
		return activity.Pipeline{}, err
	}
	stages = append(stages, more...)
	stages = append(stages, activity.Stage{ID: StageOutputScope, Run: outputScope})
	return activity.NewPipeline(stages...)
}

func has(decls []Declaration, kind Kind) bool {
	for _, d := range decls {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

func setVariableStages(decls []Declaration, kind Kind, methods Methods, offset int) ([]activity.Stage, error) {
	var stages []activity.Stage
	for _, d := range decls {
		if d.Kind != kind {
			continue
		}
		vars, err := d.expand(methods)
		if err != nil {
			return nil, err
		}
		for _, sv := range vars {
			label := sv.VariableName
			if label == "" {
				label = "mapping"
			}
			id := fmt.Sprintf("%s.%d.%s", kind, offset+len(stages), label)
			stages = append(stages, sv.Stage(id))
		}
	}
	return stages, nil
}

func defaultInput(_ context.Context, wrap activity.WrapContext, args activity.Args) (activity.WrapContext, activity.Args, error) {
	wrap.Aggregate.Merge(args.Ctx.Vars())
	return wrap, args, nil
}

// inputScope swaps the outer context for a fresh one built from the aggregate.
func inputScope(_ context.Context, wrap activity.WrapContext, args activity.Args) (activity.WrapContext, activity.Args, error) {
	wrap.Outer = args.Ctx
	args.Ctx = activity.ContextFrom(wrap.Aggregate)
	wrap.Aggregate = activity.NewVars()
	return wrap, args, nil
}

func defaultOutput(_ context.Context, wrap activity.WrapContext, args activity.Args) (activity.WrapContext, activity.Args, error) {
	_, written := args.Ctx.Decompose()
	wrap.Aggregate.Merge(written)
	return wrap, args, nil
}

// outputScope writes the aggregate into the outer context and restores it.
func outputScope(_ context.Context, wrap activity.WrapContext, args activity.Args) (activity.WrapContext, activity.Args, error) {
	outer := wrap.Outer
	if outer == nil {
		outer = args.Ctx
	}
	wrap.Aggregate.Each(outer.Set)
	args.Ctx = outer
	wrap.Outer = nil
	return wrap, args, nil
}
