// Package declare loads activities from YAML documents.
//
// A document names a flavor and lists steps. Steps refer to tasks and
// methods registered in a Registry, or carry JavaScript inline.
//
// Example:
//
//	name: create
//	flavor: railway
//	steps:
//	  - id: create_model
//	    script: "ctx.set('model', 'Object'); return true"
//	  - task: policy.create
//	    in: {current_user: user}
//	    out: [message]
//	  - kind: fail
//	    method: log_error
package declare

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dshills/activity-go/activity"
	"github.com/dshills/activity-go/activity/dsl"
	"github.com/dshills/activity-go/activity/policy"
	"github.com/dshills/activity-go/activity/script"
	"github.com/dshills/activity-go/activity/varmap"
)

// Document is a declared activity.
type Document struct {
	Name   string    `yaml:"name"`
	Flavor string    `yaml:"flavor"`
	Steps  []StepDoc `yaml:"steps"`

	reg *Registry
}

// StepDoc declares one step. Exactly one of Task, Method, Script and
// Subprocess must be set.
type StepDoc struct {
	ID         string `yaml:"id"`
	Kind       string `yaml:"kind"`
	Task       string `yaml:"task"`
	Method     string `yaml:"method"`
	Script     string `yaml:"script"`
	Subprocess string `yaml:"subprocess"`

	Before     string   `yaml:"before"`
	After      string   `yaml:"after"`
	Replace    string   `yaml:"replace"`
	MagneticTo []string `yaml:"magnetic_to"`

	FastTrack bool `yaml:"fast_track"`
	PassFast  bool `yaml:"pass_fast"`
	FailFast  bool `yaml:"fail_fast"`

	Timeout time.Duration `yaml:"timeout"`
	Retry   *RetryDoc     `yaml:"retry"`

	Outputs []OutputDoc  `yaml:"outputs"`
	Connect []ConnectDoc `yaml:"connect"`

	In      *FilterDoc `yaml:"in"`
	Out     *FilterDoc `yaml:"out"`
	Inject  *FilterDoc `yaml:"inject"`
	Default []VarDoc   `yaml:"defaults"`
}

// RetryDoc retries a failing task. Every error except a missing input is
// retried.
type RetryDoc struct {
	Attempts  int           `yaml:"attempts"`
	BaseDelay time.Duration `yaml:"base_delay"`
	MaxDelay  time.Duration `yaml:"max_delay"`
}

func (r *RetryDoc) retryPolicy() policy.RetryPolicy {
	return policy.RetryPolicy{
		MaxAttempts: r.Attempts,
		BaseDelay:   r.BaseDelay,
		MaxDelay:    r.MaxDelay,
		Retryable: func(err error) bool {
			return !errors.Is(err, activity.ErrMissingInput)
		},
	}
}

// OutputDoc adds an output to a step.
type OutputDoc struct {
	Signal   string `yaml:"signal"`
	Semantic string `yaml:"semantic"`
}

// ConnectDoc wires an output. Exactly one of Track, ID and End is set.
type ConnectDoc struct {
	Output string `yaml:"output"`
	Track  string `yaml:"track"`
	ID     string `yaml:"id"`
	End    string `yaml:"end"`
}

// VarDoc injects one variable computed by a script unless the caller
// provides it. With Override the script always runs.
type VarDoc struct {
	Name     string   `yaml:"name"`
	Script   string   `yaml:"script"`
	Requires []string `yaml:"requires"`
	Override bool     `yaml:"override"`
}

var signals = map[string]activity.Signal{
	"right":     activity.Right,
	"left":      activity.Left,
	"pass_fast": activity.PassFast,
	"fail_fast": activity.FailFast,
}

var flavors = map[string]*dsl.Flavor{
	"path":       dsl.Path,
	"railway":    dsl.Railway,
	"fast_track": dsl.FastTrack,
}

// Load decodes and validates a document. Unknown fields are rejected.
func Load(r io.Reader, reg *Registry) (*Document, error) {
	if reg == nil {
		reg = NewRegistry()
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, fmt.Errorf("parse document: %w", err)
	}
	doc.reg = reg

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadFile loads the document at path.
func LoadFile(path string, reg *Registry) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()
	return Load(f, reg)
}

// Validate checks the document without resolving names.
func (d *Document) Validate() error {
	if d.Flavor == "" {
		d.Flavor = "railway"
	}
	if _, ok := flavors[d.Flavor]; !ok {
		return fmt.Errorf("unknown flavor %q", d.Flavor)
	}
	for i, s := range d.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (s StepDoc) validate() error {
	set := 0
	for _, v := range []string{s.Task, s.Method, s.Script, s.Subprocess} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return errors.New("exactly one of task, method, script or subprocess is required")
	}
	if s.Script != "" && s.ID == "" {
		return errors.New("script steps need an id")
	}
	if (s.Timeout != 0 || s.Retry != nil) && s.Task == "" && s.Script == "" {
		return errors.New("timeout and retry apply to task and script steps only")
	}
	if s.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if s.Retry != nil {
		if err := s.Retry.retryPolicy().Validate(); err != nil {
			return err
		}
	}
	switch dsl.StepKind(s.Kind) {
	case "", dsl.KindStep, dsl.KindFail, dsl.KindPass:
	default:
		return fmt.Errorf("unknown kind %q", s.Kind)
	}

	places := 0
	for _, v := range []string{s.Before, s.After, s.Replace} {
		if v != "" {
			places++
		}
	}
	if places > 1 {
		return errors.New("before, after and replace are exclusive")
	}

	for _, o := range s.Outputs {
		if _, ok := signals[o.Signal]; !ok {
			return fmt.Errorf("unknown signal %q", o.Signal)
		}
		if o.Semantic == "" {
			return errors.New("output needs a semantic")
		}
	}
	for _, c := range s.Connect {
		n := 0
		for _, v := range []string{c.Track, c.ID, c.End} {
			if v != "" {
				n++
			}
		}
		if c.Output == "" || n != 1 {
			return fmt.Errorf("connect %q needs an output and exactly one of track, id or end", c.Output)
		}
	}
	for _, v := range s.Default {
		if v.Name == "" || v.Script == "" {
			return errors.New("defaults need a name and a script")
		}
	}
	return nil
}

// FlavorOf returns the document's flavor.
func (d *Document) FlavorOf() *dsl.Flavor { return flavors[d.Flavor] }

// Builder declares every step on a new builder.
func (d *Document) Builder() (*dsl.Builder, error) {
	reg := d.reg
	if reg == nil {
		reg = NewRegistry()
	}

	opts := []dsl.Option{dsl.WithMethods(reg.Methods())}
	if d.Name != "" {
		opts = append(opts, dsl.WithName(d.Name))
	}
	b, err := dsl.New(d.FlavorOf(), opts...)
	if err != nil {
		return nil, err
	}

	for i, s := range d.Steps {
		if err := s.declare(b, reg); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return b, nil
}

// Build declares every step and compiles the activity.
func (d *Document) Build(opts ...activity.Option) (*dsl.Activity, error) {
	b, err := d.Builder()
	if err != nil {
		return nil, err
	}
	return b.Build(opts...)
}

func (s StepDoc) declare(b *dsl.Builder, reg *Registry) error {
	opts, err := s.options()
	if err != nil {
		return err
	}

	if s.Subprocess != "" {
		t, err := reg.Task(s.Subprocess)
		if err != nil {
			return err
		}
		a, ok := t.(*dsl.Activity)
		if !ok {
			return fmt.Errorf("task %q is not an activity", s.Subprocess)
		}
		m := dsl.Subprocess(a)
		m.Kind = dsl.StepKind(s.Kind)
		if m.ID == "" {
			m.ID = s.Subprocess
		}
		return b.Macro(m, opts...)
	}

	task, err := s.task(reg)
	if err != nil {
		return err
	}
	task = policy.Timeout(task, s.Timeout)
	if s.Retry != nil {
		task = policy.Retry(task, s.Retry.retryPolicy())
	}
	switch dsl.StepKind(s.Kind) {
	case dsl.KindFail:
		return b.Fail(task, opts...)
	case dsl.KindPass:
		return b.Pass(task, opts...)
	default:
		return b.Step(task, opts...)
	}
}

func (s StepDoc) task(reg *Registry) (activity.Task, error) {
	switch {
	case s.Method != "":
		return dsl.Method(s.Method), nil
	case s.Script != "":
		return script.Task(s.ID, s.Script)
	default:
		t, err := reg.Task(s.Task)
		if err != nil {
			return nil, err
		}
		if _, named := activity.TaskName(t); !named {
			t = activity.Named(s.Task, t)
		}
		return t, nil
	}
}

func (s StepDoc) options() ([]dsl.StepOption, error) {
	var opts []dsl.StepOption
	if s.ID != "" {
		opts = append(opts, dsl.ID(s.ID))
	}
	switch {
	case s.Before != "":
		opts = append(opts, dsl.Before(s.Before))
	case s.After != "":
		opts = append(opts, dsl.After(s.After))
	case s.Replace != "":
		opts = append(opts, dsl.Replace(s.Replace))
	}
	if len(s.MagneticTo) > 0 {
		opts = append(opts, dsl.MagneticTo(s.MagneticTo...))
	}
	if s.FastTrack {
		opts = append(opts, dsl.WithFastTrack(true))
	}
	if s.PassFast {
		opts = append(opts, dsl.PassFast(true))
	}
	if s.FailFast {
		opts = append(opts, dsl.FailFast(true))
	}

	for _, o := range s.Outputs {
		opts = append(opts, dsl.Output(signals[o.Signal], o.Semantic))
	}
	for _, c := range s.Connect {
		var target dsl.Target
		switch {
		case c.Track != "":
			target = dsl.Track(c.Track)
		case c.ID != "":
			target = dsl.ToID(c.ID)
		default:
			target = dsl.End(c.End)
		}
		opts = append(opts, dsl.Connect(c.Output, target))
	}

	for _, m := range []struct {
		doc  *FilterDoc
		decl func(varmap.Filter) dsl.StepOption
	}{
		{s.In, dsl.In},
		{s.Inject, dsl.Inject},
		{s.Out, dsl.Out},
	} {
		if m.doc == nil {
			continue
		}
		f, err := m.doc.Filter()
		if err != nil {
			return nil, err
		}
		opts = append(opts, m.decl(f))
	}

	for _, v := range s.Default {
		f, err := script.Value(v.Script, v.Requires...)
		if err != nil {
			return nil, fmt.Errorf("default %s: %w", v.Name, err)
		}
		if v.Override {
			opts = append(opts, dsl.InjectOverride(v.Name, f))
		} else {
			opts = append(opts, dsl.InjectVar(v.Name, f))
		}
	}
	return opts, nil
}
