package activity

import (
	"errors"
	"fmt"
	"testing"
)

// TestTypedErrorHandling verifies that every structured error matches its kind.
func TestTypedErrorHandling(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		shouldBe bool
	}{
		{"duplicate id", &DuplicateIDError{ID: "a"}, ErrDuplicateID, true},
		{"reference", &ReferenceError{ID: "a"}, ErrReference, true},
		{"no route", &NoRouteError{Semantic: "failure", RowID: "a"}, ErrNoRoute, true},
		{"unknown signal is a routing failure", &UnknownSignalError{RowID: "a"}, ErrNoRoute, true},
		{"missing input", &MissingInputError{Key: "user"}, ErrMissingInput, true},
		{"wrapped missing input", fmt.Errorf("step: %w", &MissingInputError{Key: "user"}), ErrMissingInput, true},
		{"kinds do not mix", &NoRouteError{}, ErrReference, false},
		{"compile error unwraps", &CompileError{Message: "x", Cause: &DuplicateIDError{ID: "a"}}, ErrDuplicateID, true},
		{"max steps identity", ErrMaxStepsExceeded, ErrMaxStepsExceeded, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.shouldBe {
				t.Errorf("expected errors.Is = %v, got %v", tt.shouldBe, got)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&DuplicateIDError{ID: "a"}, `duplicate id "a"`},
		{&ReferenceError{Kind: "method", ID: "model"}, `unknown method "model"`},
		{&ReferenceError{ID: "x"}, `unknown row "x"`},
		{&NoRouteError{Semantic: "failure", RowID: "a"}, `no route for "failure" from row "a"`},
		{&MissingInputError{Key: "user"}, `missing keyword "user"`},
		{&MissingInputError{Key: "user", Source: "current_user", RowID: "policy"}, `row policy: missing keyword "user" (read from "current_user")`},
		{&CompileError{Message: "task cannot be nil", Code: "MISSING_TASK", RowID: "a"}, "MISSING_TASK: row a: task cannot be nil"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("expected %q, got %q", tt.want, got)
		}
	}
}
