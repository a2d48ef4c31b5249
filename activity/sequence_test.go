package activity

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewSequence(t *testing.T) {
	t.Run("keeps order", func(t *testing.T) {
		seq, err := NewSequence(plainRow("a"), plainRow("b"), plainRow("c"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := ids(seq); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
			t.Errorf("expected [a b c], got %v", got)
		}
		start, ok := seq.Start()
		if !ok || start.ID != "a" {
			t.Errorf("expected start row a, got %v", start)
		}
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		_, err := NewSequence(plainRow("a"), plainRow("a"))
		var dup *DuplicateIDError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicateIDError, got %v", err)
		}
		if dup.ID != "a" {
			t.Errorf("expected id a, got %q", dup.ID)
		}
	})

	t.Run("rejects empty id", func(t *testing.T) {
		if _, err := NewSequence(&Row{Task: returning(Right)}); err == nil {
			t.Error("expected error for empty id")
		}
	})

	t.Run("empty sequence has no start", func(t *testing.T) {
		seq, _ := NewSequence()
		if _, ok := seq.Start(); ok {
			t.Error("expected no start row")
		}
	})
}

func TestInsert(t *testing.T) {
	base, _ := NewSequence(plainRow("a"), plainRow("b"), plainRow("c"))

	tests := []struct {
		name      string
		row       *Row
		placement Placement
		want      []string
	}{
		{"append after first", plainRow("x"), Append("a"), []string{"a", "x", "b", "c"}},
		{"append after last", plainRow("x"), After("c"), []string{"a", "b", "c", "x"}},
		{"prepend before first", plainRow("x"), Prepend("a"), []string{"x", "a", "b", "c"}},
		{"prepend before last", plainRow("x"), Before("c"), []string{"a", "b", "x", "c"}},
		{"replace keeps position", plainRow("x"), Replace("b"), []string{"a", "x", "c"}},
		{"replace with same id", plainRow("b"), Replace("b"), []string{"a", "b", "c"}},
		{"delete", nil, Delete("b"), []string{"a", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Insert(base, tt.row, tt.placement)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(ids(got), tt.want) {
				t.Errorf("expected %v, got %v", tt.want, ids(got))
			}
			if !reflect.DeepEqual(ids(base), []string{"a", "b", "c"}) {
				t.Errorf("input sequence was modified: %v", ids(base))
			}
		})
	}
}

func TestInsert_PlacesImmediatelyAroundAnchor(t *testing.T) {
	base, _ := NewSequence(plainRow("a"), plainRow("b"), plainRow("c"), plainRow("d"))

	for _, anchor := range base.IDs() {
		appended, err := Insert(base, plainRow("new"), Append(anchor))
		if err != nil {
			t.Fatalf("append %s: %v", anchor, err)
		}
		if appended.Index("new") != appended.Index(anchor)+1 {
			t.Errorf("append %s: expected new right after anchor, got %v", anchor, ids(appended))
		}

		prepended, err := Insert(base, plainRow("new"), Prepend(anchor))
		if err != nil {
			t.Fatalf("prepend %s: %v", anchor, err)
		}
		if prepended.Index("new") != prepended.Index(anchor)-1 {
			t.Errorf("prepend %s: expected new right before anchor, got %v", anchor, ids(prepended))
		}

		// Every other row keeps its relative order.
		for _, seq := range []Sequence{appended, prepended} {
			var rest []string
			for _, id := range seq.IDs() {
				if id != "new" {
					rest = append(rest, id)
				}
			}
			if !reflect.DeepEqual(rest, base.IDs()) {
				t.Errorf("expected remaining order %v, got %v", base.IDs(), rest)
			}
		}
	}
}

func TestInsert_Errors(t *testing.T) {
	base, _ := NewSequence(plainRow("a"), plainRow("b"))

	t.Run("missing anchor", func(t *testing.T) {
		_, err := Insert(base, plainRow("x"), Append("nope"))
		var ref *ReferenceError
		if !errors.As(err, &ref) {
			t.Fatalf("expected ReferenceError, got %v", err)
		}
		if ref.ID != "nope" {
			t.Errorf("expected anchor nope, got %q", ref.ID)
		}
		if !errors.Is(err, ErrReference) {
			t.Error("expected errors.Is(err, ErrReference)")
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		_, err := Insert(base, plainRow("b"), Append("a"))
		if !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("expected ErrDuplicateID, got %v", err)
		}
	})

	t.Run("replace with id of another row", func(t *testing.T) {
		_, err := Insert(base, plainRow("b"), Replace("a"))
		if !errors.Is(err, ErrDuplicateID) {
			t.Fatalf("expected ErrDuplicateID, got %v", err)
		}
	})

	t.Run("delete missing anchor", func(t *testing.T) {
		_, err := Insert(base, nil, Delete("x"))
		if !errors.Is(err, ErrReference) {
			t.Fatalf("expected ErrReference, got %v", err)
		}
	})

	t.Run("nil row", func(t *testing.T) {
		if _, err := Insert(base, nil, Append("a")); err == nil {
			t.Error("expected error for nil row")
		}
	})
}

func TestPlacement_String(t *testing.T) {
	if got := Prepend("End.success").String(); got != "Prepend(End.success)" {
		t.Errorf("expected Prepend(End.success), got %q", got)
	}
	if After("a") != Append("a") || Before("a") != Prepend("a") {
		t.Error("expected After/Before to alias Append/Prepend")
	}
}
