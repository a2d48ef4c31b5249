package store

import (
	"context"
	"time"

	"github.com/dshills/activity-go/activity/emit"
)

// Emitter adapts a Store into an emit.Emitter so that a circuit's events
// are recorded as they happen.
type Emitter struct {
	store   Store
	timeout time.Duration
	onError func(emit.Event, error)
}

// NewEmitter returns an emitter saving into st. onError, when non-nil,
// receives events that could not be saved; otherwise failures are dropped.
func NewEmitter(st Store, onError func(emit.Event, error)) *Emitter {
	return &Emitter{store: st, timeout: 5 * time.Second, onError: onError}
}

// Emit saves event, bounded by a five second timeout.
func (e *Emitter) Emit(event emit.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	if err := e.store.SaveEvent(ctx, event); err != nil && e.onError != nil {
		e.onError(event, err)
	}
}
