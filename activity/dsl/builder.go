package dsl

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/activity-go/activity"
	"github.com/dshills/activity-go/activity/varmap"
)

const fieldName = "name"

// Builder declares the steps of an activity.
//
// Every call inserts one row into the builder's sequence. Errors abort the
// call and leave the builder unchanged. A Builder is not safe for
// concurrent use; the Activity it builds is.
type Builder struct {
	flavor  *Flavor
	state   *State
	methods varmap.Methods
}

// Option configures a Builder.
type Option func(*Builder) error

// WithMethods sets the functions Method tasks and varmap.MethodRef filters
// resolve against.
func WithMethods(methods varmap.Methods) Option {
	return func(b *Builder) error {
		b.methods = make(varmap.Methods, len(methods))
		for name, fn := range methods {
			if fn == nil {
				return fmt.Errorf("method %q is nil", name)
			}
			b.methods[name] = fn
		}
		return nil
	}
}

// WithName names the activity. The name labels the compiled circuit and is
// the default id when the activity is used as a subprocess.
func WithName(name string) Option {
	return func(b *Builder) error {
		b.state.UpdateFields(map[string]any{fieldName: name})
		return nil
	}
}

// New returns a builder for flavor.
func New(flavor *Flavor, opts ...Option) (*Builder, error) {
	if flavor == nil {
		return nil, errors.New("flavor cannot be nil")
	}
	normalizers, err := flavor.Normalizers()
	if err != nil {
		return nil, fmt.Errorf("compile %s normalizers: %w", flavor.Name(), err)
	}
	seq, err := flavor.InitialSequence()
	if err != nil {
		return nil, err
	}

	b := &Builder{flavor: flavor, state: NewState(normalizers, seq, nil)}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// Method returns a task that calls the builder method name as a step. The
// reference is resolved when the step is declared.
func Method(name string) activity.Task {
	return methodTask{name: name}
}

type methodTask struct {
	name string
}

func (m methodTask) TaskName() string { return m.name }

func (m methodTask) Call(context.Context, activity.Args) (activity.Signal, activity.Args, error) {
	return nil, activity.Args{}, &activity.ReferenceError{Kind: "method", ID: m.name}
}

// Step declares a step: success continues on the success track, failure
// (in Railway and FastTrack) switches to the failure track.
func (b *Builder) Step(task activity.Task, opts ...StepOption) error {
	return b.add(KindStep, task, nil, opts)
}

// Fail declares a step on the failure track.
func (b *Builder) Fail(task activity.Task, opts ...StepOption) error {
	return b.add(KindFail, task, nil, opts)
}

// Pass declares a step whose outcome is always success.
func (b *Builder) Pass(task activity.Task, opts ...StepOption) error {
	return b.add(KindPass, task, nil, opts)
}

// Macro declares a step from m. opts override the macro's options.
func (b *Builder) Macro(m Macro, opts ...StepOption) error {
	kind := m.Kind
	if kind == "" {
		kind = KindStep
	}
	return b.add(kind, nil, m.options(), opts)
}

// Delete removes the row with id.
func (b *Builder) Delete(id string) error {
	return b.state.UpdateSequence(func(seq activity.Sequence) (activity.Sequence, error) {
		return activity.Insert(seq, nil, activity.Delete(id))
	})
}

// Copy returns a builder that starts from b's current state. Steps added to
// either builder afterwards do not affect the other.
func (b *Builder) Copy() *Builder {
	methods := make(varmap.Methods, len(b.methods))
	for k, v := range b.methods {
		methods[k] = v
	}
	return &Builder{flavor: b.flavor, state: b.state.Copy(), methods: methods}
}

// Flavor returns the builder's flavor.
func (b *Builder) Flavor() *Flavor { return b.flavor }

// State returns the builder state.
func (b *Builder) State() *State { return b.state }

// Sequence returns the sequence declared so far.
func (b *Builder) Sequence() activity.Sequence { return b.state.Sequence() }

// Build compiles the sequence into an Activity. opts are passed to
// activity.Compile after the builder's own name option.
func (b *Builder) Build(opts ...activity.Option) (*Activity, error) {
	var all []activity.Option
	if name, ok := b.state.Field(fieldName); ok {
		all = append(all, activity.WithName(name.(string)))
	}
	all = append(all, opts...)

	seq := b.state.Sequence()
	c, err := activity.Compile(seq, all...)
	if err != nil {
		return nil, err
	}
	return &Activity{Sequence: seq, Circuit: c}, nil
}

func (b *Builder) add(kind StepKind, task activity.Task, macro Options, opts []StepOption) error {
	norm, err := b.state.Normalizer(kind)
	if err != nil {
		return fmt.Errorf("%s flavor: %w", b.flavor.Name(), err)
	}

	user := Options{}
	for _, opt := range opts {
		opt(user)
	}

	if task, err = b.resolve(task); err != nil {
		return err
	}
	if macro != nil {
		if t, ok := macro[KeyTask].(activity.Task); ok {
			if macro[KeyTask], err = b.resolve(t); err != nil {
				return err
			}
		}
	}

	spec, err := norm.Normalize(context.Background(), task, macro, user)
	if err != nil {
		return err
	}

	row := spec.Row()
	if row.Extensions, err = varmap.Compile(spec.Declarations, b.methods); err != nil {
		return fmt.Errorf("step %q: %w", spec.ID, err)
	}

	return b.state.UpdateSequence(func(seq activity.Sequence) (activity.Sequence, error) {
		seq, err := activity.Insert(seq, row, spec.Placement)
		if err != nil {
			return activity.Sequence{}, fmt.Errorf("step %q: %w", spec.ID, err)
		}
		for _, add := range spec.Adds {
			if _, exists := seq.Find(add.ID); exists {
				continue
			}
			last := seq.At(seq.Len() - 1)
			if seq, err = activity.Insert(seq, add, activity.After(last.ID)); err != nil {
				return activity.Sequence{}, err
			}
		}
		return seq, nil
	})
}

func (b *Builder) resolve(task activity.Task) (activity.Task, error) {
	m, ok := task.(methodTask)
	if !ok {
		return task, nil
	}
	fn, err := b.methods.Resolve(m.name)
	if err != nil {
		return nil, err
	}
	return activity.Named(m.name, activity.Step(fn)), nil
}

// Activity is a built activity: its sequence and the compiled circuit.
type Activity struct {
	Sequence activity.Sequence
	Circuit  *activity.Circuit
}

// Invoke runs the activity with a context built from data.
func (a *Activity) Invoke(ctx context.Context, data map[string]any) (activity.Signal, *activity.Context, error) {
	sig, out, _, err := a.Circuit.Invoke(ctx, activity.Right, activity.NewContext(data), nil)
	return sig, out, err
}

// Call implements activity.Task, so an activity can run as a step of
// another one. The returned signal is the nested terminus.
func (a *Activity) Call(ctx context.Context, args activity.Args) (activity.Signal, activity.Args, error) {
	sig, data, flow, err := a.Circuit.Invoke(ctx, activity.Right, args.Ctx, args.Flow)
	return sig, activity.Args{Ctx: data, Flow: flow}, err
}

// TaskName implements activity.Namer.
func (a *Activity) TaskName() string { return a.Circuit.Name() }
