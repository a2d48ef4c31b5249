package activity

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/dshills/activity-go/activity/emit"
)

func setTask(key string, value any, sig Signal) Task {
	return TaskFunc(func(_ context.Context, args Args) (Signal, Args, error) {
		args.Ctx.Set(key, value)
		return sig, args, nil
	})
}

func TestCompile_Errors(t *testing.T) {
	t.Run("empty sequence", func(t *testing.T) {
		if _, err := Compile(Sequence{}); !errors.Is(err, ErrEmptySequence) {
			t.Errorf("expected ErrEmptySequence, got %v", err)
		}
	})

	t.Run("nil task", func(t *testing.T) {
		seq, _ := NewSequence(&Row{ID: "a"})
		_, err := Compile(seq)
		var ce *CompileError
		if !errors.As(err, &ce) || ce.Code != "MISSING_TASK" {
			t.Errorf("expected MISSING_TASK, got %v", err)
		}
	})

	t.Run("ambiguous signal", func(t *testing.T) {
		row := &Row{ID: "a", Task: returning(Right), Outputs: map[string]Output{
			"success": NewOutput(Right, "success"),
			"ok":      NewOutput(Right, "ok"),
		}}
		seq, _ := NewSequence(row)
		_, err := Compile(seq)
		var ce *CompileError
		if !errors.As(err, &ce) || ce.Code != "AMBIGUOUS_SIGNAL" {
			t.Errorf("expected AMBIGUOUS_SIGNAL, got %v", err)
		}
	})

	t.Run("negative max steps", func(t *testing.T) {
		if _, err := Compile(railway(), WithMaxSteps(-1)); err == nil {
			t.Error("expected option error")
		}
	})
}

func TestCircuit_Invoke_Railway(t *testing.T) {
	create := railwayRow("create", setTask("model", "Object", Right))
	validate := railwayRow("validate", setTask("valid", false, Left))
	save := railwayRow("save", setTask("saved", true, Right))
	seq := railway(create, validate, save)

	circuit, err := Compile(seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sig, data, _, err := circuit.Invoke(context.Background(), Right, NewContext(nil), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	end, ok := sig.(*End)
	if !ok || end.Semantic() != "failure" {
		t.Fatalf("expected End.failure, got %v", sig)
	}
	if data.Value("model") != "Object" {
		t.Errorf("expected model to be set")
	}
	if data.Has("saved") {
		t.Error("expected save to be skipped on the failure track")
	}
}

func TestCompile_IsIdempotent(t *testing.T) {
	check := TaskFunc(func(_ context.Context, args Args) (Signal, Args, error) {
		if args.Ctx.Value("ok") == true {
			return Right, args, nil
		}
		return Left, args, nil
	})
	seq := railway(railwayRow("check", check), railwayRow("save", setTask("saved", true, Right)))

	first, err := Compile(seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := Compile(seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct circuits")
	}

	for _, input := range []map[string]any{{"ok": true}, {"ok": false}, nil} {
		sig1, data1, _, err1 := first.Invoke(context.Background(), Right, NewContext(input), nil)
		sig2, data2, _, err2 := second.Invoke(context.Background(), Right, NewContext(input), nil)
		if sig1 != sig2 || err1 != err2 {
			t.Errorf("input %v: expected same end, got %v and %v", input, sig1, sig2)
		}
		if !reflect.DeepEqual(data1.ToMap(), data2.ToMap()) {
			t.Errorf("input %v: expected same context, got %v and %v", input, data1.ToMap(), data2.ToMap())
		}
		for _, id := range seq.IDs() {
			if !reflect.DeepEqual(first.Edges(id), second.Edges(id)) {
				t.Errorf("row %s: expected same edges", id)
			}
		}
	}
}

func TestCircuit_Invoke_ReturnsFlowOptions(t *testing.T) {
	task := TaskFunc(func(_ context.Context, args Args) (Signal, Args, error) {
		args.Flow = FlowOptions{"touched": true}
		return Right, args, nil
	})
	circuit, err := Compile(railway(railwayRow("a", task)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, _, flow, err := circuit.Invoke(context.Background(), Right, nil, FlowOptions{"in": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flow["touched"] != true {
		t.Errorf("expected flow options from the task, got %v", flow)
	}
}

func TestCircuit_NoRoute(t *testing.T) {
	// a emits failure, but no row is magnetic to failure.
	a := railwayRow("a", returning(Left))
	seq, _ := NewSequence(StartRow("Start.default"), a, EndRow("End.success", NewEnd("success"), "success"))

	circuit, err := Compile(seq)
	if err != nil {
		t.Fatalf("expected lazy compile to succeed, got %v", err)
	}

	_, _, _, err = circuit.Invoke(context.Background(), Right, nil, nil)
	var nre *NoRouteError
	if !errors.As(err, &nre) {
		t.Fatalf("expected NoRouteError, got %v", err)
	}
	if nre.Semantic != "failure" || nre.RowID != "a" {
		t.Errorf("expected (failure, a), got (%s, %s)", nre.Semantic, nre.RowID)
	}

	t.Run("success path still works", func(t *testing.T) {
		ok := railwayRow("a", returning(Right))
		seq, _ := NewSequence(StartRow("Start.default"), ok, EndRow("End.success", NewEnd("success"), "success"))
		circuit, _ := Compile(seq)
		if _, _, _, err := circuit.Invoke(context.Background(), Right, nil, nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("validate reports eagerly", func(t *testing.T) {
		err := circuit.Validate()
		if !errors.As(err, &nre) || nre.RowID != "a" {
			t.Errorf("expected NoRouteError for a, got %v", err)
		}
	})

	t.Run("strict routes fail compile", func(t *testing.T) {
		if _, err := Compile(seq, WithStrictRoutes()); !errors.Is(err, ErrNoRoute) {
			t.Errorf("expected ErrNoRoute, got %v", err)
		}
	})
}

func TestCircuit_UnknownSignal(t *testing.T) {
	stray := NewSignal("stray")
	circuit, _ := Compile(railway(railwayRow("a", returning(stray))))

	_, _, _, err := circuit.Invoke(context.Background(), Right, nil, nil)
	var use *UnknownSignalError
	if !errors.As(err, &use) {
		t.Fatalf("expected UnknownSignalError, got %v", err)
	}
	if use.Signal != stray || use.RowID != "a" {
		t.Errorf("unexpected error fields %+v", use)
	}
}

func TestCircuit_TaskErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	task := TaskFunc(func(_ context.Context, args Args) (Signal, Args, error) {
		calls++
		return nil, args, boom
	})
	circuit, _ := Compile(railway(railwayRow("a", task)))

	if _, _, _, err := circuit.Invoke(context.Background(), Right, nil, nil); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly one call, got %d", calls)
	}
}

func TestCircuit_MissingInputCarriesRow(t *testing.T) {
	task := Step(func(*Context, Keywords) (any, error) { return true, nil }, "user")
	circuit, _ := Compile(railway(railwayRow("policy", task)))

	_, _, _, err := circuit.Invoke(context.Background(), Right, nil, nil)
	var missing *MissingInputError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingInputError, got %v", err)
	}
	if missing.RowID != "policy" || missing.Key != "user" {
		t.Errorf("expected (user, policy), got (%s, %s)", missing.Key, missing.RowID)
	}
}

func TestCircuit_MissingInputLeavesTaskErrorUntouched(t *testing.T) {
	shared := &MissingInputError{Key: "user"}
	task := TaskFunc(func(_ context.Context, args Args) (Signal, Args, error) {
		return nil, args, shared
	})
	first, _ := Compile(railway(railwayRow("first", task)))
	second, _ := Compile(railway(railwayRow("second", task)))

	for _, tt := range []struct {
		circuit *Circuit
		row     string
	}{{first, "first"}, {second, "second"}} {
		_, _, _, err := tt.circuit.Invoke(context.Background(), Right, nil, nil)
		var missing *MissingInputError
		if !errors.As(err, &missing) || missing.RowID != tt.row {
			t.Errorf("expected missing input at %s, got %v", tt.row, err)
		}
		if !errors.Is(err, ErrMissingInput) || !errors.Is(err, shared) {
			t.Errorf("expected the task's error in the chain, got %v", err)
		}
		if err.Error() != `row `+tt.row+`: missing keyword "user"` {
			t.Errorf("unexpected message %q", err.Error())
		}
	}
	if shared.RowID != "" {
		t.Errorf("expected the task's error unchanged, got row %q", shared.RowID)
	}
}

func TestCircuit_NoRouteErrorsAreNotShared(t *testing.T) {
	seq, _ := NewSequence(StartRow("Start.default"), railwayRow("a", returning(Left)), EndRow("End.success", NewEnd("success"), "success"))
	circuit, _ := Compile(seq)

	_, _, _, err := circuit.Invoke(context.Background(), Right, nil, nil)
	var nre *NoRouteError
	if !errors.As(err, &nre) {
		t.Fatalf("expected NoRouteError, got %v", err)
	}
	nre.RowID = "changed"

	_, _, _, err = circuit.Invoke(context.Background(), Right, nil, nil)
	if !errors.As(err, &nre) || nre.RowID != "a" {
		t.Errorf("expected a fresh NoRouteError for a, got %v", err)
	}
	if err := circuit.Validate(); !errors.As(err, &nre) || nre.RowID != "a" {
		t.Errorf("expected Validate to report a, got %v", err)
	}
}

func TestCircuit_ByIDLoopHitsMaxSteps(t *testing.T) {
	loop := railwayRow("loop", returning(Right))
	loop.Connections = map[string]Connection{
		"success": NewConnection(ByID, "loop"),
		"failure": NewConnection(Forward, "failure"),
	}
	circuit, err := Compile(railway(loop), WithMaxSteps(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, _, err := circuit.Invoke(context.Background(), Right, nil, nil); !errors.Is(err, ErrMaxStepsExceeded) {
		t.Errorf("expected ErrMaxStepsExceeded, got %v", err)
	}
}

func TestCircuit_ContextCancelled(t *testing.T) {
	circuit, _ := Compile(railway(railwayRow("a", returning(Right))))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, _, err := circuit.Invoke(ctx, Right, nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCircuit_InvokeFrom(t *testing.T) {
	var order []string
	record := func(id string) Task {
		return TaskFunc(func(_ context.Context, args Args) (Signal, Args, error) {
			order = append(order, id)
			return Right, args, nil
		})
	}
	circuit, _ := Compile(railway(railwayRow("a", record("a")), railwayRow("b", record("b"))))

	if _, _, _, err := circuit.InvokeFrom(context.Background(), "b", Right, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(order, []string{"b"}) {
		t.Errorf("expected only b to run, got %v", order)
	}

	if _, _, _, err := circuit.InvokeFrom(context.Background(), "zzz", Right, nil, nil); !errors.Is(err, ErrReference) {
		t.Errorf("expected ErrReference, got %v", err)
	}
}

func TestCircuit_EdgesAndUnreachable(t *testing.T) {
	circuit, _ := Compile(railway(railwayRow("a", returning(Right))))

	edges := circuit.Edges("a")
	want := map[string]string{"success": "End.success", "failure": "End.failure"}
	if !reflect.DeepEqual(edges, want) {
		t.Errorf("expected %v, got %v", want, edges)
	}

	pass := railwayRow("a", returning(Right))
	pass.Connections = map[string]Connection{"success": NewConnection(Forward, "success"), "failure": NewConnection(Forward, "success")}
	circuit, _ = Compile(railway(pass))
	if got := circuit.Unreachable(); !reflect.DeepEqual(got, []string{"End.failure"}) {
		t.Errorf("expected End.failure unreachable, got %v", got)
	}
}

func TestCircuit_Events(t *testing.T) {
	buf := emit.NewBufferedEmitter()
	circuit, _ := Compile(
		railway(railwayRow("a", returning(Right))),
		WithEmitter(buf),
		WithName("create"),
		WithRunIDGenerator(func() string { return "run-1" }),
	)

	if _, _, _, err := circuit.Invoke(context.Background(), Right, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var msgs []string
	for _, e := range buf.GetHistory("run-1") {
		msgs = append(msgs, e.Msg+":"+e.RowID)
	}
	want := []string{
		"invocation_start:",
		"step_start:Start.default", "step_end:Start.default",
		"step_start:a", "step_end:a",
		"step_start:End.success", "step_end:End.success",
		"invocation_end:End.success",
	}
	if !reflect.DeepEqual(msgs, want) {
		t.Errorf("expected %v, got %v", want, msgs)
	}

	ends := buf.GetHistoryWithFilter("run-1", emit.HistoryFilter{RowID: "a", Msg: "step_end"})
	if len(ends) != 1 {
		t.Fatalf("expected one step_end for a, got %d", len(ends))
	}
	if ends[0].Meta["next"] != "End.success" || ends[0].Meta["semantic"] != "success" || ends[0].Meta["circuit"] != "create" {
		t.Errorf("unexpected meta %v", ends[0].Meta)
	}
}

func TestCircuit_RunIDFromContext(t *testing.T) {
	buf := emit.NewBufferedEmitter()
	circuit, _ := Compile(railway(), WithEmitter(buf))

	ctx := WithRunID(context.Background(), "fixed")
	if _, _, _, err := circuit.Invoke(ctx, Right, nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := buf.Runs(); !reflect.DeepEqual(got, []string{"fixed"}) {
		t.Errorf("expected run id from context, got %v", got)
	}
}

func TestCircuit_ConcurrentInvocationsAreIndependent(t *testing.T) {
	double := railwayRow("double", Step(func(data *Context, kw Keywords) (any, error) {
		data.Set("out", kw["in"].(int)*2)
		return true, nil
	}, "in"))
	circuit, err := Compile(railway(double))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, data, _, err := circuit.Invoke(context.Background(), Right, NewContext(map[string]any{"in": i}), nil)
			if err != nil {
				errs <- err
				return
			}
			if data.Value("out") != i*2 {
				errs <- fmt.Errorf("invocation %d: expected %d, got %v", i, i*2, data.Value("out"))
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
