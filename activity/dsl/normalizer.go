package dsl

import (
	"context"
	"fmt"
	"sort"

	"github.com/dshills/activity-go/activity"
	"github.com/dshills/activity-go/activity/varmap"
)

// Keys a normalizer reads from and writes to its context.
const (
	KeyOptions         = "options"
	KeyUserOptions     = "user_options"
	KeyID              = "id"
	KeyTask            = "task"
	KeyOutputs         = "outputs"
	KeyConnections     = "connections"
	KeyMagneticTo      = "magnetic_to"
	KeySequenceInsert  = "sequence_insert"
	KeyFastTrack       = "fast_track"
	KeyPassFast        = "pass_fast"
	KeyFailFast        = "fail_fast"
	KeyExtraOutputs    = "extra_outputs"
	KeyWirings         = "wirings"
	KeyVariableMapping = "variable_mapping"
	KeyWrapTask        = "wrap_task"
	KeyAdds            = "adds"
)

// Options are step options keyed by the Key constants.
type Options map[string]any

// RowSpec is the canonical description of a row produced by a normalizer.
type RowSpec struct {
	ID           string
	Task         activity.Task
	MagneticTo   []string
	Outputs      map[string]activity.Output
	Connections  map[string]activity.Connection
	Placement    activity.Placement
	Terminus     bool
	Declarations []varmap.Declaration

	// Adds are rows the step's wiring needs, such as a custom End.
	Adds []*activity.Row
}

// Row returns the row described by s, without extensions.
func (s RowSpec) Row() *activity.Row {
	return &activity.Row{
		ID:          s.ID,
		Task:        s.Task,
		MagneticTo:  s.MagneticTo,
		Outputs:     s.Outputs,
		Connections: s.Connections,
		Terminus:    s.Terminus,
	}
}

// Normalizer turns the options of one step declaration into a RowSpec.
//
// A normalizer is an activity: a path of option-merging steps compiled
// into a circuit and invoked with the options as context. It holds no
// state and may be shared.
type Normalizer struct {
	kind    StepKind
	circuit *activity.Circuit
}

// Kind returns the step kind the normalizer serves.
func (n *Normalizer) Kind() StepKind { return n.kind }

// Circuit returns the compiled normalizer activity.
func (n *Normalizer) Circuit() *activity.Circuit { return n.circuit }

// Invoke runs the normalizer activity on data and returns the resulting
// context.
func (n *Normalizer) Invoke(ctx context.Context, data map[string]any) (activity.Signal, *activity.Context, error) {
	sig, out, _, err := n.circuit.Invoke(ctx, activity.Right, activity.NewContext(data), nil)
	return sig, out, err
}

// Normalize merges macro options with user options (user options win) and
// returns the row spec.
func (n *Normalizer) Normalize(ctx context.Context, task activity.Task, macro, user Options) (RowSpec, error) {
	data := map[string]any{
		KeyOptions:     macro,
		KeyUserOptions: user,
	}
	if task != nil {
		data[KeyTask] = task
	}
	_, out, err := n.Invoke(ctx, data)
	if err != nil {
		return RowSpec{}, err
	}
	return specFrom(out)
}

func compileNormalizer(flavor string, kind StepKind, build func(StepKind) (activity.Sequence, error)) (*Normalizer, error) {
	seq, err := build(kind)
	if err != nil {
		return nil, err
	}
	c, err := activity.Compile(seq, activity.WithName(fmt.Sprintf("normalizer.%s.%s", flavor, kind)), activity.WithStrictRoutes())
	if err != nil {
		return nil, err
	}
	return &Normalizer{kind: kind, circuit: c}, nil
}

func normalizerRow(id string, fn activity.StepFunc) *activity.Row {
	return &activity.Row{
		ID:          id,
		Task:        activity.Named(id, activity.Step(fn)),
		MagneticTo:  []string{"success"},
		Outputs:     map[string]activity.Output{"success": activity.NewOutput(activity.Right, "success")},
		Connections: map[string]activity.Connection{"success": activity.NewConnection(activity.Forward, "success")},
	}
}

func insertAll(seq activity.Sequence, p func(prev string) activity.Placement, steps ...*activity.Row) (activity.Sequence, error) {
	prev := ""
	for _, row := range steps {
		var err error
		seq, err = activity.Insert(seq, row, p(prev))
		if err != nil {
			return activity.Sequence{}, err
		}
		prev = row.ID
	}
	return seq, nil
}

// pathSteps prepends the generic normalizer steps to End.success.
func pathSteps(StepKind) (activity.Sequence, error) {
	seq, err := initialSequence("success")
	if err != nil {
		return activity.Sequence{}, err
	}
	return insertAll(seq, func(string) activity.Placement { return activity.Before("End.success") },
		normalizerRow("normalize.options", mergeOptions),
		normalizerRow("path.outputs", pathOutputs),
		normalizerRow("path.connections", pathConnections),
		normalizerRow("normalize.wirings", applyWirings),
		normalizerRow("normalize.defaults", applyDefaults),
	)
}

func railwaySteps(kind StepKind) (activity.Sequence, error) {
	seq, err := pathSteps(kind)
	if err != nil {
		return activity.Sequence{}, err
	}
	seq, err = insertAll(seq, func(string) activity.Placement { return activity.Before("path.outputs") },
		normalizerRow("railway.outputs", railwayOutputs),
		normalizerRow("railway.connections", railwayConnections),
	)
	if err != nil {
		return activity.Sequence{}, err
	}

	switch kind {
	case KindFail:
		return activity.Insert(seq, normalizerRow("railway.fail", trackConnections("failure")), activity.Before("railway.connections"))
	case KindPass:
		return activity.Insert(seq, normalizerRow("railway.pass", trackConnections("success")), activity.Before("railway.connections"))
	default:
		return seq, nil
	}
}

func fastTrackSteps(seq activity.Sequence) (activity.Sequence, error) {
	return insertAll(seq, func(prev string) activity.Placement {
		if prev == "" {
			return activity.After("railway.connections")
		}
		return activity.After(prev)
	},
		normalizerRow("fast_track.fast_track", fastTrackOutputs),
		normalizerRow("fast_track.pass_fast", rewire(KeyPassFast, "success", "pass_fast")),
		normalizerRow("fast_track.fail_fast", rewire(KeyFailFast, "failure", "fail_fast")),
	)
}

func mergeOptions(data *activity.Context, kw activity.Keywords) (any, error) {
	macro := asOptions(kw[KeyOptions])
	user := asOptions(kw[KeyUserOptions])

	for _, k := range sortedKeys(macro) {
		data.Set(k, macro[k])
	}
	for _, k := range sortedKeys(user) {
		v := user[k]
		if k == KeyVariableMapping && truthy(macro[KeyWrapTask]) {
			inner, _ := macro[KeyVariableMapping].([]varmap.Declaration)
			outer, _ := v.([]varmap.Declaration)
			merged := make([]varmap.Declaration, 0, len(inner)+len(outer))
			v = append(append(merged, inner...), outer...)
		}
		data.Set(k, v)
	}
	return true, nil
}

func pathOutputs(data *activity.Context, _ activity.Keywords) (any, error) {
	if !data.Has(KeyOutputs) {
		data.Set(KeyOutputs, map[string]activity.Output{
			"success": activity.NewOutput(activity.Right, "success"),
		})
	}
	return true, nil
}

func pathConnections(data *activity.Context, _ activity.Keywords) (any, error) {
	if !data.Has(KeyConnections) {
		data.Set(KeyConnections, map[string]activity.Connection{
			"success": activity.NewConnection(activity.Forward, "success"),
		})
	}
	return true, nil
}

func railwayOutputs(data *activity.Context, _ activity.Keywords) (any, error) {
	if !data.Has(KeyOutputs) {
		data.Set(KeyOutputs, map[string]activity.Output{
			"failure": activity.NewOutput(activity.Left, "failure"),
			"success": activity.NewOutput(activity.Right, "success"),
		})
	}
	return true, nil
}

func railwayConnections(data *activity.Context, _ activity.Keywords) (any, error) {
	if !data.Has(KeyConnections) {
		data.Set(KeyConnections, map[string]activity.Connection{
			"failure": activity.NewConnection(activity.Forward, "failure"),
			"success": activity.NewConnection(activity.Forward, "success"),
		})
	}
	return true, nil
}

// trackConnections wires both binary outputs to track and makes the step
// magnetic to it, for fail and pass steps.
func trackConnections(track string) activity.StepFunc {
	return func(data *activity.Context, _ activity.Keywords) (any, error) {
		if !data.Has(KeyConnections) {
			data.Set(KeyConnections, map[string]activity.Connection{
				"failure": activity.NewConnection(activity.Forward, track),
				"success": activity.NewConnection(activity.Forward, track),
			})
		}
		if !data.Has(KeyMagneticTo) {
			data.Set(KeyMagneticTo, []string{track})
		}
		return true, nil
	}
}

func fastTrackOutputs(data *activity.Context, kw activity.Keywords) (any, error) {
	if !truthy(kw[KeyFastTrack]) {
		return true, nil
	}
	outputs := copyMap(outputsOf(kw))
	outputs["pass_fast"] = activity.NewOutput(activity.PassFast, "pass_fast")
	outputs["fail_fast"] = activity.NewOutput(activity.FailFast, "fail_fast")
	data.Set(KeyOutputs, outputs)

	conns := copyMap(connectionsOf(kw))
	conns["pass_fast"] = activity.NewConnection(activity.Forward, "pass_fast")
	conns["fail_fast"] = activity.NewConnection(activity.Forward, "fail_fast")
	data.Set(KeyConnections, conns)
	return true, nil
}

// rewire routes the from output to the to track when flag is set.
func rewire(flag, from, to string) activity.StepFunc {
	return func(data *activity.Context, kw activity.Keywords) (any, error) {
		if !truthy(kw[flag]) {
			return true, nil
		}
		conns := copyMap(connectionsOf(kw))
		conns[from] = activity.NewConnection(activity.Forward, to)
		data.Set(KeyConnections, conns)
		return true, nil
	}
}

func applyWirings(data *activity.Context, kw activity.Keywords) (any, error) {
	extra, _ := kw[KeyExtraOutputs].([]activity.Output)
	wirings, _ := kw[KeyWirings].([]wiring)
	if len(extra) == 0 && len(wirings) == 0 {
		return true, nil
	}

	if len(extra) > 0 {
		outputs := copyMap(outputsOf(kw))
		for _, out := range extra {
			outputs[out.Semantic] = out
		}
		data.Set(KeyOutputs, outputs)
	}

	if len(wirings) > 0 {
		conns := copyMap(connectionsOf(kw))
		var adds []*activity.Row
		for _, w := range wirings {
			conn, row := w.target.wire()
			conns[w.semantic] = conn
			if row != nil {
				adds = append(adds, row)
			}
		}
		data.Set(KeyConnections, conns)
		if len(adds) > 0 {
			data.Set(KeyAdds, adds)
		}
	}
	return true, nil
}

func applyDefaults(data *activity.Context, kw activity.Keywords) (any, error) {
	if !data.Has(KeySequenceInsert) {
		data.Set(KeySequenceInsert, activity.Prepend("End.success"))
	}
	if !data.Has(KeyMagneticTo) {
		data.Set(KeyMagneticTo, []string{"success"})
	}
	if !data.Has(KeyID) {
		if task, ok := kw[KeyTask].(activity.Task); ok {
			if name, named := activity.TaskName(task); named {
				data.Set(KeyID, name)
			}
		}
	}
	return true, nil
}

func specFrom(data *activity.Context) (RowSpec, error) {
	var spec RowSpec
	var ok bool

	id := data.Value(KeyID)
	if spec.ID, ok = id.(string); !ok || spec.ID == "" {
		return RowSpec{}, &activity.CompileError{Message: "step has no id and its task is not named", Code: "MISSING_ID"}
	}
	if spec.Task, ok = data.Value(KeyTask).(activity.Task); !ok {
		return RowSpec{}, &activity.CompileError{Message: "step has no task", Code: "MISSING_TASK", RowID: spec.ID}
	}
	if spec.Outputs, ok = data.Value(KeyOutputs).(map[string]activity.Output); !ok {
		return RowSpec{}, invalidOption(spec.ID, KeyOutputs, data.Value(KeyOutputs))
	}
	if spec.Connections, ok = data.Value(KeyConnections).(map[string]activity.Connection); !ok {
		return RowSpec{}, invalidOption(spec.ID, KeyConnections, data.Value(KeyConnections))
	}
	if spec.MagneticTo, ok = data.Value(KeyMagneticTo).([]string); !ok {
		return RowSpec{}, invalidOption(spec.ID, KeyMagneticTo, data.Value(KeyMagneticTo))
	}
	if spec.Placement, ok = data.Value(KeySequenceInsert).(activity.Placement); !ok {
		return RowSpec{}, invalidOption(spec.ID, KeySequenceInsert, data.Value(KeySequenceInsert))
	}
	if v, has := data.Get(KeyVariableMapping); has {
		if spec.Declarations, ok = v.([]varmap.Declaration); !ok {
			return RowSpec{}, invalidOption(spec.ID, KeyVariableMapping, v)
		}
	}
	spec.Adds, _ = data.Value(KeyAdds).([]*activity.Row)
	return spec, nil
}

func invalidOption(rowID, key string, v any) error {
	return &activity.CompileError{Message: fmt.Sprintf("option %s has unexpected type %T", key, v), Code: "INVALID_OPTION", RowID: rowID}
}

func asOptions(v any) Options {
	switch o := v.(type) {
	case Options:
		return o
	case map[string]any:
		return Options(o)
	default:
		return nil
	}
}

func outputsOf(kw activity.Keywords) map[string]activity.Output {
	m, _ := kw[KeyOutputs].(map[string]activity.Output)
	return m
}

func connectionsOf(kw activity.Keywords) map[string]activity.Connection {
	m, _ := kw[KeyConnections].(map[string]activity.Connection)
	return m
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
