// Package activity provides the core task-graph runtime for activity-go.
package activity

import (
	"errors"
	"fmt"
)

// Error kinds. Every structured error in this package matches exactly one of
// these through errors.Is.
var (
	// ErrDuplicateID indicates that a row or stage id is already present.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrReference indicates that an anchor, row, or method name could not be resolved.
	ErrReference = errors.New("unresolved reference")

	// ErrNoRoute indicates that a returned signal could not be turned into a next row.
	ErrNoRoute = errors.New("no route")

	// ErrMissingInput indicates that a required keyword was absent from the context.
	ErrMissingInput = errors.New("missing input")
)

// ErrEmptySequence is returned by Compile for a sequence without rows.
var ErrEmptySequence = errors.New("sequence has no rows")

// ErrMaxStepsExceeded indicates that an invocation reached the maximum
// allowed step count without reaching a terminus. This prevents runaway
// loops built from explicit id wiring.
var ErrMaxStepsExceeded = errors.New("invocation exceeded maximum steps limit")

// ErrTaskNotCalled is returned when a task-wrap pipeline finishes without
// running its task stage, usually because an extension replaced it.
var ErrTaskNotCalled = errors.New("task wrap pipeline finished without calling the task")

// DuplicateIDError reports an insertion whose id already exists.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate id %q", e.ID)
}

// Is reports whether target is ErrDuplicateID.
func (e *DuplicateIDError) Is(target error) bool { return target == ErrDuplicateID }

// ReferenceError reports a name that does not resolve. Kind describes what
// was being looked up ("row", "stage", "method", "task").
type ReferenceError struct {
	Kind string
	ID   string
}

func (e *ReferenceError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "row"
	}
	return fmt.Sprintf("unknown %s %q", kind, e.ID)
}

// Is reports whether target is ErrReference.
func (e *ReferenceError) Is(target error) bool { return target == ErrReference }

// NoRouteError reports that no row is magnetic to Semantic when searching
// from RowID.
type NoRouteError struct {
	Semantic string
	RowID    string
}

func (e *NoRouteError) Error() string {
	return fmt.Sprintf("no route for %q from row %q", e.Semantic, e.RowID)
}

// Is reports whether target is ErrNoRoute.
func (e *NoRouteError) Is(target error) bool { return target == ErrNoRoute }

// UnknownSignalError reports a task that returned a signal none of its
// row's outputs declare.
type UnknownSignalError struct {
	RowID  string
	Signal Signal
}

func (e *UnknownSignalError) Error() string {
	name := "<nil>"
	if e.Signal != nil {
		name = e.Signal.String()
	}
	return fmt.Sprintf("row %q returned undeclared signal %s", e.RowID, name)
}

// Is reports whether target is ErrNoRoute: an undeclared signal cannot be routed.
func (e *UnknownSignalError) Is(target error) bool { return target == ErrNoRoute }

// MissingInputError reports a required keyword absent at call time. Key is
// the name the consumer asked for; Source is the outer name it was to be
// read from when that differs.
type MissingInputError struct {
	Key    string
	Source string
	RowID  string
}

func (e *MissingInputError) Error() string {
	msg := fmt.Sprintf("missing keyword %q", e.Key)
	if e.Source != "" && e.Source != e.Key {
		msg += fmt.Sprintf(" (read from %q)", e.Source)
	}
	if e.RowID != "" {
		msg = "row " + e.RowID + ": " + msg
	}
	return msg
}

// Is reports whether target is ErrMissingInput.
func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// locatedError carries a copy of a task's *MissingInputError with the row
// filled in. The task's own error value is left untouched.
type locatedError struct {
	missing *MissingInputError
	err     error
	direct  bool
}

func locateMissing(err error, missing *MissingInputError, rowID string) error {
	located := *missing
	located.RowID = rowID
	return &locatedError{missing: &located, err: err, direct: err == error(missing)}
}

func (e *locatedError) Error() string {
	if e.direct {
		return e.missing.Error()
	}
	return "row " + e.missing.RowID + ": " + e.err.Error()
}

// Unwrap returns the located copy first so errors.As finds it before the
// task's original.
func (e *locatedError) Unwrap() []error { return []error{e.missing, e.err} }

// CompileError represents an error from Compile or from building a row.
type CompileError struct {
	Message string
	Code    string
	RowID   string
	Cause   error
}

func (e *CompileError) Error() string {
	msg := e.Message
	if e.RowID != "" {
		msg = "row " + e.RowID + ": " + msg
	}
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause error for error wrapping support.
func (e *CompileError) Unwrap() error {
	return e.Cause
}
