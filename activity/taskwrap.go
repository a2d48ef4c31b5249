package activity

import "context"

// Stage ids installed by the runtime and the variable-mapping extensions.
const (
	StageCallTask = "task_wrap.call_task"
	StageInput    = "task_wrap.input"
	StageOutput   = "task_wrap.output"
)

// WrapContext is the per-call record threaded through a row's task-wrap
// pipeline. It is owned by a single call and never shared.
type WrapContext struct {
	// RowID identifies the row being run.
	RowID string

	// Task is the row's task.
	Task Task

	// Aggregate collects variables computed by mapping stages.
	Aggregate *Vars

	// Outer is the caller's context while an input scope is open.
	Outer *Context

	// Signal is the signal returned by the task.
	Signal Signal

	// Result holds the arguments the task returned.
	Result Args

	// Called reports whether the task stage ran.
	Called bool
}

// StageFunc is one step of a task-wrap pipeline.
type StageFunc func(ctx context.Context, wrap WrapContext, args Args) (WrapContext, Args, error)

// Stage is a named pipeline step.
type Stage struct {
	ID  string
	Run StageFunc
}

// RowID returns the stage id.
func (s Stage) RowID() string { return s.ID }

// Extension adds a stage to a row's pipeline at compile time.
type Extension struct {
	Placement Placement
	Stage     Stage
}

// stageSemantic is the semantic every stage row attracts and follows.
const stageSemantic = "success"

// Pipeline is an ordered, immutable list of stages run around a task. The
// stages are held as a Sequence of rows, each magnetic to "success", and the
// stage after each one is resolved with Forward when the pipeline is built.
type Pipeline struct {
	stages []Stage
	next   []int
}

// link resolves the run order of stages through a Sequence of stage rows.
func link(stages []Stage) (Pipeline, error) {
	rows := make([]*Row, len(stages))
	for i, s := range stages {
		rows[i] = &Row{ID: s.ID, MagneticTo: []string{stageSemantic}}
	}
	seq, err := NewSequence(rows...)
	if err != nil {
		return Pipeline{}, err
	}
	next := make([]int, len(rows))
	for i, r := range rows {
		next[i] = -1
		if to, ok := Forward.Find(seq, r, stageSemantic); ok {
			next[i] = seq.Index(to.ID)
		}
	}
	return Pipeline{stages: stages, next: next}, nil
}

// NewPipeline returns a pipeline of the given stages.
func NewPipeline(stages ...Stage) (Pipeline, error) {
	out := make([]Stage, len(stages))
	copy(out, stages)
	return link(out)
}

// DefaultPipeline returns the pipeline every row starts from: a single
// stage that calls the task.
func DefaultPipeline() Pipeline {
	return Pipeline{stages: []Stage{{ID: StageCallTask, Run: callTask}}, next: []int{-1}}
}

func callTask(ctx context.Context, wrap WrapContext, args Args) (WrapContext, Args, error) {
	sig, out, err := wrap.Task.Call(ctx, args)
	if err != nil {
		return wrap, args, err
	}
	if out.Ctx == nil {
		out.Ctx = args.Ctx
	}
	wrap.Signal = sig
	wrap.Result = out
	wrap.Called = true
	return wrap, out, nil
}

// Insert returns a new pipeline with stage placed according to p.
func (p Pipeline) Insert(stage Stage, pl Placement) (Pipeline, error) {
	stages, err := place(p.stages, stage, pl, "stage")
	if err != nil {
		return Pipeline{}, err
	}
	return link(stages)
}

// Extend applies extensions in order.
func (p Pipeline) Extend(exts ...Extension) (Pipeline, error) {
	var err error
	for _, ext := range exts {
		p, err = p.Insert(ext.Stage, ext.Placement)
		if err != nil {
			return Pipeline{}, err
		}
	}
	return p, nil
}

// IDs returns the stage ids in order.
func (p Pipeline) IDs() []string {
	ids := make([]string, len(p.stages))
	for i, s := range p.stages {
		ids[i] = s.ID
	}
	return ids
}

// Len returns the number of stages.
func (p Pipeline) Len() int { return len(p.stages) }

// Run threads wrap and args through the stages, starting at the first and
// following the resolved successor of each.
func (p Pipeline) Run(ctx context.Context, wrap WrapContext, args Args) (WrapContext, Args, error) {
	if len(p.stages) == 0 {
		return wrap, args, nil
	}
	var err error
	for i := 0; i >= 0; i = p.next[i] {
		wrap, args, err = p.stages[i].Run(ctx, wrap, args)
		if err != nil {
			return wrap, args, err
		}
	}
	return wrap, args, nil
}

// Invoke runs task inside the pipeline and returns the signal the task
// produced along with the arguments left by the last stage.
func (p Pipeline) Invoke(ctx context.Context, rowID string, task Task, args Args) (Signal, Args, error) {
	wrap := WrapContext{RowID: rowID, Task: task, Aggregate: NewVars()}
	wrap, args, err := p.Run(ctx, wrap, args)
	if err != nil {
		return nil, args, err
	}
	if !wrap.Called {
		return nil, args, ErrTaskNotCalled
	}
	return wrap.Signal, args, nil
}
