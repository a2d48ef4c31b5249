package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dshills/activity-go/activity/emit"
)

// runStoreSuite exercises the Store contract against any implementation.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("history keeps order", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()

		events := []emit.Event{
			{RunID: "run-1", Step: 0, Msg: "invocation_start"},
			{RunID: "run-1", Step: 1, RowID: "a", Msg: "step_start"},
			{RunID: "run-1", Step: 1, RowID: "a", Msg: "step_end", Meta: map[string]interface{}{"semantic": "success"}},
		}
		for _, e := range events {
			if err := st.SaveEvent(ctx, e); err != nil {
				t.Fatalf("SaveEvent failed: %v", err)
			}
		}

		got, err := st.History(ctx, "run-1")
		if err != nil {
			t.Fatalf("History failed: %v", err)
		}
		if len(got) != len(events) {
			t.Fatalf("expected %d events, got %d", len(events), len(got))
		}
		for i := range events {
			if got[i].Msg != events[i].Msg || got[i].RowID != events[i].RowID || got[i].Step != events[i].Step {
				t.Errorf("event %d: expected %+v, got %+v", i, events[i], got[i])
			}
		}
		if got[2].Meta["semantic"] != "success" {
			t.Errorf("expected meta to survive, got %v", got[2].Meta)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		st := newStore(t)
		if _, err := st.History(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("runs newest first", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		for _, id := range []string{"r1", "r2", "r3"} {
			_ = st.SaveEvent(ctx, emit.Event{RunID: id, Msg: "invocation_start"})
			_ = st.SaveEvent(ctx, emit.Event{RunID: id, Step: 1, RowID: "End.success", Msg: "invocation_end"})
		}

		runs, err := st.Runs(ctx, 2)
		if err != nil {
			t.Fatalf("Runs failed: %v", err)
		}
		if len(runs) != 2 || runs[0].RunID != "r3" || runs[1].RunID != "r2" {
			t.Fatalf("expected [r3 r2], got %+v", runs)
		}
		if runs[0].Events != 2 || runs[0].LastMsg != "invocation_end" || runs[0].LastRowID != "End.success" {
			t.Errorf("unexpected summary %+v", runs[0])
		}

		all, _ := st.Runs(ctx, 0)
		if len(all) != 3 {
			t.Errorf("expected 3 runs, got %d", len(all))
		}
	})

	t.Run("concurrent writers", func(t *testing.T) {
		st := newStore(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 10; i++ {
					if err := st.SaveEvent(ctx, emit.Event{RunID: fmt.Sprintf("w%d", w), Step: i}); err != nil {
						t.Errorf("SaveEvent failed: %v", err)
					}
				}
			}(w)
		}
		wg.Wait()

		for w := 0; w < 4; w++ {
			events, err := st.History(ctx, fmt.Sprintf("w%d", w))
			if err != nil || len(events) != 10 {
				t.Errorf("w%d: expected 10 events, got %d (%v)", w, len(events), err)
			}
		}
	})

	t.Run("closed store", func(t *testing.T) {
		st := newStore(t)
		if err := st.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
		if err := st.SaveEvent(context.Background(), emit.Event{RunID: "r"}); err == nil {
			t.Error("expected error on closed store")
		}
	})
}

func TestMemStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		st := NewMemStore()
		t.Cleanup(func() { _ = st.Close() })
		return st
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		st, err := NewSQLiteStore(t.TempDir() + "/trace.db")
		if err != nil {
			t.Fatalf("NewSQLiteStore failed: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		return st
	})
}
