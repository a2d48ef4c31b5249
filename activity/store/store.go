// Package store records invocation traces: the events a circuit emits,
// grouped by run. It never persists the graph itself.
package store

import (
	"context"
	"errors"

	"github.com/dshills/activity-go/activity/emit"
)

// ErrNotFound is returned when a run has no recorded events.
var ErrNotFound = errors.New("not found")

// errClosed is returned by every operation on a closed store.
var errClosed = errors.New("store is closed")

// Store persists invocation events.
//
// Implementations must be safe for concurrent use: one circuit may be
// invoked from many goroutines, all emitting into the same store.
type Store interface {
	// SaveEvent appends event to the trace of event.RunID.
	SaveEvent(ctx context.Context, event emit.Event) error

	// History returns the events of runID in the order they were saved.
	// Returns ErrNotFound when the run is unknown.
	History(ctx context.Context, runID string) ([]emit.Event, error)

	// Runs summarizes the most recent runs, newest first. A limit of zero
	// or less returns every run.
	Runs(ctx context.Context, limit int) ([]RunSummary, error)

	// Close releases the store's resources.
	Close() error
}

// RunSummary describes one recorded invocation.
type RunSummary struct {
	// RunID identifies the invocation.
	RunID string

	// Events is the number of recorded events.
	Events int

	// LastMsg is the kind of the last event, "invocation_end" for a run that
	// reached a terminus.
	LastMsg string

	// LastRowID is the row of the last event.
	LastRowID string
}
