package activity

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dshills/activity-go/activity/emit"
)

// Circuit is the frozen, executable form of a Sequence.
//
// Compile resolves every row's signal table, its connections and its
// task-wrap pipeline once. A Circuit is immutable afterwards and safe for
// any number of concurrent Invoke calls; each invocation owns its context.
//
// Connections that do not resolve are kept and reported only when an
// invocation takes them (or eagerly by Validate / WithStrictRoutes).
//
// Example:
//
//	seq, _ := activity.NewSequence(
//	    activity.StartRow("Start.default"),
//	    &activity.Row{ID: "create", Task: create, MagneticTo: []string{"success"}, ...},
//	    activity.EndRow("End.success", activity.NewEnd("success"), "success"),
//	)
//	circuit, err := activity.Compile(seq)
//	sig, data, _, err := circuit.Invoke(ctx, activity.Right, activity.NewContext(nil), nil)
type Circuit struct {
	seq   Sequence
	rows  []compiledRow
	index map[string]int
	cfg   config
}

type compiledRow struct {
	row        *Row
	semantics  map[Signal]string
	edges      map[string]int
	unresolved map[string]*NoRouteError
	pipeline   Pipeline
}

// Compile freezes seq into a Circuit.
//
// Returns error if:
//   - seq has no rows (ErrEmptySequence)
//   - a row has no task, a nil output signal, or two outputs sharing a signal
//   - a row extension cannot be placed in the task-wrap pipeline
//   - WithStrictRoutes is set and a connection does not resolve
func Compile(seq Sequence, opts ...Option) (*Circuit, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if seq.Len() == 0 {
		return nil, ErrEmptySequence
	}

	c := &Circuit{
		seq:   seq,
		rows:  make([]compiledRow, seq.Len()),
		index: make(map[string]int, seq.Len()),
		cfg:   cfg,
	}
	for i, row := range seq.rows {
		c.index[row.ID] = i
	}

	for i, row := range seq.rows {
		cr, err := c.compileRow(row)
		if err != nil {
			return nil, err
		}
		c.rows[i] = cr
	}

	if cfg.strictRoutes {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Circuit) compileRow(row *Row) (compiledRow, error) {
	if row.Task == nil {
		return compiledRow{}, &CompileError{Message: "task cannot be nil", Code: "MISSING_TASK", RowID: row.ID}
	}

	cr := compiledRow{
		row:        row,
		semantics:  make(map[Signal]string, len(row.Outputs)),
		edges:      make(map[string]int, len(row.Connections)),
		unresolved: make(map[string]*NoRouteError),
	}

	for sem, out := range row.Outputs {
		if out.Signal == nil {
			return compiledRow{}, &CompileError{Message: "output " + sem + " has no signal", Code: "INVALID_OUTPUT", RowID: row.ID}
		}
		if other, dup := cr.semantics[out.Signal]; dup {
			return compiledRow{}, &CompileError{
				Message: fmt.Sprintf("outputs %s and %s share signal %s", other, sem, out.Signal),
				Code:    "AMBIGUOUS_SIGNAL",
				RowID:   row.ID,
			}
		}
		cr.semantics[out.Signal] = sem
	}

	for sem, conn := range row.Connections {
		if conn.Search == nil {
			return compiledRow{}, &CompileError{Message: "connection " + sem + " has no search strategy", Code: "INVALID_CONNECTION", RowID: row.ID}
		}
		target, ok := conn.Search.Find(c.seq, row, conn.Target)
		if !ok {
			cr.unresolved[sem] = &NoRouteError{Semantic: conn.Target, RowID: row.ID}
			continue
		}
		cr.edges[sem] = c.index[target.ID]
	}

	pipeline, err := DefaultPipeline().Extend(row.Extensions...)
	if err != nil {
		return compiledRow{}, &CompileError{Message: "cannot extend task wrap", Code: "INVALID_EXTENSION", RowID: row.ID, Cause: err}
	}
	cr.pipeline = pipeline
	return cr, nil
}

// Sequence returns the sequence the circuit was compiled from.
func (c *Circuit) Sequence() Sequence { return c.seq }

// Name returns the configured circuit name.
func (c *Circuit) Name() string { return c.cfg.name }

// Pipeline returns the compiled task-wrap pipeline of a row.
func (c *Circuit) Pipeline(rowID string) (Pipeline, bool) {
	i, ok := c.index[rowID]
	if !ok {
		return Pipeline{}, false
	}
	return c.rows[i].pipeline, true
}

// Edges returns the resolved target row id of each connection of rowID.
// Unresolved connections are absent.
func (c *Circuit) Edges(rowID string) map[string]string {
	i, ok := c.index[rowID]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(c.rows[i].edges))
	for sem, target := range c.rows[i].edges {
		out[sem] = c.rows[target].row.ID
	}
	return out
}

// Validate reports every connection of a non-terminus row that does not
// resolve, in structural order. The result joins *NoRouteError values.
func (c *Circuit) Validate() error {
	var errs []error
	for _, cr := range c.rows {
		if cr.row.Terminus {
			continue
		}
		for _, sem := range sortedKeys(cr.unresolved) {
			nre := *cr.unresolved[sem]
			errs = append(errs, &nre)
		}
	}
	return errors.Join(errs...)
}

// Unreachable returns the ids of rows no resolved connection leads to from
// the start row, in structural order.
func (c *Circuit) Unreachable() []string {
	seen := make([]bool, len(c.rows))
	stack := []int{0}
	seen[0] = true
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if c.rows[i].row.Terminus {
			continue
		}
		for _, next := range c.rows[i].edges {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}

	var out []string
	for i, ok := range seen {
		if !ok {
			out = append(out, c.rows[i].row.ID)
		}
	}
	return out
}

// Invoke runs the circuit from its start row.
//
// data is updated in place and returned; a nil data starts from an empty
// context. start is reported in the invocation_start event. The returned
// signal is the one emitted by the terminus that ended the invocation.
//
// Errors:
//   - any error returned by a task or a task-wrap stage, unchanged
//   - *UnknownSignalError when a task returns a signal its row does not declare
//   - *NoRouteError when the selected connection does not resolve
//   - ErrMaxStepsExceeded, or ctx.Err() when ctx is done between rows
func (c *Circuit) Invoke(ctx context.Context, start Signal, data *Context, flow FlowOptions) (Signal, *Context, FlowOptions, error) {
	return c.run(ctx, 0, start, data, flow)
}

// InvokeFrom runs the circuit starting at rowID instead of the start row.
func (c *Circuit) InvokeFrom(ctx context.Context, rowID string, start Signal, data *Context, flow FlowOptions) (Signal, *Context, FlowOptions, error) {
	i, ok := c.index[rowID]
	if !ok {
		return nil, data, flow, &ReferenceError{Kind: "row", ID: rowID}
	}
	return c.run(ctx, i, start, data, flow)
}

func (c *Circuit) run(ctx context.Context, current int, start Signal, data *Context, flow FlowOptions) (Signal, *Context, FlowOptions, error) {
	if data == nil {
		data = NewContext(nil)
	}
	runID, ok := RunIDFrom(ctx)
	if !ok {
		runID = c.cfg.newRunID()
	}

	if c.cfg.metrics != nil {
		c.cfg.metrics.InvocationStarted(c.cfg.name)
		defer c.cfg.metrics.InvocationFinished(c.cfg.name)
	}

	startName := ""
	if start != nil {
		startName = start.String()
	}
	c.emit(runID, 0, "", "invocation_start", map[string]interface{}{
		"start":    startName,
		"from_row": c.rows[current].row.ID,
	})

	args := Args{Ctx: data, Flow: flow}
	step := 0
	for {
		step++

		if c.cfg.maxSteps > 0 && step > c.cfg.maxSteps {
			return nil, args.Ctx, args.Flow, c.fail(runID, step, "", ErrMaxStepsExceeded)
		}

		select {
		case <-ctx.Done():
			return nil, args.Ctx, args.Flow, c.fail(runID, step, "", ctx.Err())
		default:
		}

		cr := &c.rows[current]
		rowID := cr.row.ID
		c.emit(runID, step, rowID, "step_start", nil)

		began := time.Now()
		sig, out, err := cr.pipeline.Invoke(ctx, rowID, cr.row.Task, args)
		latency := time.Since(began)
		if err != nil {
			var missing *MissingInputError
			if errors.As(err, &missing) {
				if missing.RowID == "" {
					err = locateMissing(err, missing, rowID)
				}
				c.routingError(rowID, "missing_input")
			}
			c.recordLatency(rowID, "error", latency)
			return nil, args.Ctx, args.Flow, c.fail(runID, step, rowID, err)
		}
		args = out

		semantic, declared := cr.semantics[sig]
		c.recordLatency(rowID, semantic, latency)

		meta := map[string]interface{}{
			"signal":     signalName(sig),
			"semantic":   semantic,
			"latency_ms": latency.Milliseconds(),
		}

		if cr.row.Terminus {
			c.emit(runID, step, rowID, "step_end", meta)
			c.emit(runID, step, rowID, "invocation_end", map[string]interface{}{"terminus": rowID, "signal": signalName(sig)})
			if c.cfg.metrics != nil {
				c.cfg.metrics.IncrementInvocations(c.cfg.name, rowID)
			}
			return sig, args.Ctx, args.Flow, nil
		}

		if !declared {
			c.emit(runID, step, rowID, "step_end", meta)
			c.routingError(rowID, "unknown_signal")
			return nil, args.Ctx, args.Flow, c.fail(runID, step, rowID, &UnknownSignalError{RowID: rowID, Signal: sig})
		}

		next, routed := cr.edges[semantic]
		if !routed {
			c.emit(runID, step, rowID, "step_end", meta)
			c.routingError(rowID, "no_route")
			nre := NoRouteError{Semantic: semantic, RowID: rowID}
			if unresolved, ok := cr.unresolved[semantic]; ok {
				nre = *unresolved
			}
			return nil, args.Ctx, args.Flow, c.fail(runID, step, rowID, &nre)
		}

		meta["next"] = c.rows[next].row.ID
		c.emit(runID, step, rowID, "step_end", meta)
		current = next
	}
}

func (c *Circuit) emit(runID string, step int, rowID, msg string, meta map[string]interface{}) {
	if c.cfg.name != "" {
		if meta == nil {
			meta = make(map[string]interface{}, 1)
		}
		meta["circuit"] = c.cfg.name
	}
	c.cfg.emitter.Emit(emit.Event{
		RunID: runID,
		Step:  step,
		RowID: rowID,
		Msg:   msg,
		Meta:  meta,
	})
}

func (c *Circuit) fail(runID string, step int, rowID string, err error) error {
	c.emit(runID, step, rowID, "invocation_error", map[string]interface{}{"error": err.Error()})
	if c.cfg.metrics != nil {
		c.cfg.metrics.IncrementInvocations(c.cfg.name, "error")
	}
	return err
}

func (c *Circuit) recordLatency(rowID, semantic string, latency time.Duration) {
	if c.cfg.metrics != nil {
		c.cfg.metrics.RecordStepLatency(c.cfg.name, rowID, semantic, latency)
	}
}

func (c *Circuit) routingError(rowID, kind string) {
	if c.cfg.metrics != nil {
		c.cfg.metrics.IncrementRoutingErrors(c.cfg.name, rowID, kind)
	}
}

func signalName(sig Signal) string {
	if sig == nil {
		return "<nil>"
	}
	return sig.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
