package dsl

import (
	"github.com/dshills/activity-go/activity"
	"github.com/dshills/activity-go/activity/varmap"
)

// StepOption sets one option of a step declaration.
type StepOption func(Options)

// ID sets the step id. Without it the id is the task name.
func ID(id string) StepOption {
	return func(o Options) { o[KeyID] = id }
}

// Before inserts the step right before the row with id.
func Before(id string) StepOption {
	return func(o Options) { o[KeySequenceInsert] = activity.Before(id) }
}

// After inserts the step right after the row with id.
func After(id string) StepOption {
	return func(o Options) { o[KeySequenceInsert] = activity.After(id) }
}

// Replace puts the step in place of the row with id.
func Replace(id string) StepOption {
	return func(o Options) { o[KeySequenceInsert] = activity.Replace(id) }
}

// MagneticTo sets the semantics the step attracts.
func MagneticTo(semantics ...string) StepOption {
	return func(o Options) { o[KeyMagneticTo] = append([]string(nil), semantics...) }
}

// WithFastTrack adds the pass_fast and fail_fast outputs to the step.
func WithFastTrack(on bool) StepOption {
	return func(o Options) { o[KeyFastTrack] = on }
}

// PassFast routes the step's success output to the pass_fast track.
func PassFast(on bool) StepOption {
	return func(o Options) { o[KeyPassFast] = on }
}

// FailFast routes the step's failure output to the fail_fast track.
func FailFast(on bool) StepOption {
	return func(o Options) { o[KeyFailFast] = on }
}

// Output adds an output to the step. Wire it with Connect.
func Output(signal activity.Signal, semantic string) StepOption {
	return func(o Options) {
		extra, _ := o[KeyExtraOutputs].([]activity.Output)
		o[KeyExtraOutputs] = append(extra, activity.NewOutput(signal, semantic))
	}
}

// Outputs replaces the flavor's outputs and connections: every output is
// wired forward to the track named after its semantic.
func Outputs(outputs ...activity.Output) StepOption {
	return func(o Options) {
		outs := make(map[string]activity.Output, len(outputs))
		conns := make(map[string]activity.Connection, len(outputs))
		for _, out := range outputs {
			outs[out.Semantic] = out
			conns[out.Semantic] = activity.NewConnection(activity.Forward, out.Semantic)
		}
		o[KeyOutputs] = outs
		o[KeyConnections] = conns
	}
}

// Connect wires the output semantic to target.
func Connect(semantic string, target Target) StepOption {
	return func(o Options) {
		ws, _ := o[KeyWirings].([]wiring)
		o[KeyWirings] = append(ws, wiring{semantic: semantic, target: target})
	}
}

// In adds an In declaration.
func In(f varmap.Filter) StepOption { return declare(varmap.In(f)) }

// Out adds an Out declaration.
func Out(f varmap.Filter) StepOption { return declare(varmap.Out(f)) }

// OutWithOuter adds an Out declaration that also sees the outer context.
func OutWithOuter(fn varmap.OuterFunc) StepOption { return declare(varmap.OutWithOuter(fn)) }

// Inject adds an Inject declaration.
func Inject(f varmap.Filter) StepOption { return declare(varmap.Inject(f)) }

// InjectVar injects name computed by f unless the caller provides it.
func InjectVar(name string, f varmap.Filter) StepOption {
	return declare(varmap.InjectVar(name, f))
}

// InjectOverride always injects name computed by f.
func InjectOverride(name string, f varmap.Filter) StepOption {
	return declare(varmap.InjectOverride(name, f))
}

func declare(d varmap.Declaration) StepOption {
	return func(o Options) {
		ds, _ := o[KeyVariableMapping].([]varmap.Declaration)
		o[KeyVariableMapping] = append(ds, d)
	}
}

// Target is where Connect wires an output.
type Target interface {
	wire() (activity.Connection, *activity.Row)
}

type wiring struct {
	semantic string
	target   Target
}

type track string

func (t track) wire() (activity.Connection, *activity.Row) {
	return activity.NewConnection(activity.Forward, string(t)), nil
}

// Track wires to the next row magnetic to semantic.
func Track(semantic string) Target { return track(semantic) }

type toID string

func (t toID) wire() (activity.Connection, *activity.Row) {
	return activity.NewConnection(activity.ByID, string(t)), nil
}

// ToID wires to the row with id, wherever it is.
func ToID(id string) Target { return toID(id) }

type toEnd string

func (t toEnd) wire() (activity.Connection, *activity.Row) {
	id := "End." + string(t)
	return activity.NewConnection(activity.ByID, id), activity.EndRow(id, activity.NewEnd(string(t)))
}

// End wires to the terminus End.<semantic>, adding it to the sequence if
// it does not exist yet.
func End(semantic string) Target { return toEnd(semantic) }

// Macro is a reusable step: a task with preset options.
//
// With WrapTask set, the macro's variable mapping is kept and the step's
// own In, Out and Inject declarations are appended after it. Otherwise
// step options replace macro options key by key.
type Macro struct {
	Task     activity.Task
	ID       string
	Kind     StepKind
	WrapTask bool
	Options  []StepOption
}

func (m Macro) options() Options {
	o := Options{KeyTask: m.Task}
	if m.ID != "" {
		o[KeyID] = m.ID
	}
	if m.WrapTask {
		o[KeyWrapTask] = true
	}
	for _, opt := range m.Options {
		opt(o)
	}
	return o
}

// Subprocess returns a macro running a as a nested activity. Every
// terminus of a becomes an output of the step, wired to the track of the
// same name.
func Subprocess(a *Activity) Macro {
	var outs []activity.Output
	for _, row := range a.Sequence.Rows() {
		if !row.Terminus {
			continue
		}
		if end, ok := row.Task.(*activity.End); ok {
			outs = append(outs, activity.NewOutput(end, end.Semantic()))
		}
	}
	return Macro{
		Task:    a,
		ID:      a.Circuit.Name(),
		Options: []StepOption{Outputs(outs...)},
	}
}
