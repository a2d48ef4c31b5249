package store

import (
	"context"
	"sync"

	"github.com/dshills/activity-go/activity/emit"
)

// MemStore is an in-memory Store. Traces are lost when the process exits.
type MemStore struct {
	mu     sync.RWMutex
	events map[string][]emit.Event
	order  []string
	closed bool
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{events: make(map[string][]emit.Event)}
}

// SaveEvent implements Store.
func (m *MemStore) SaveEvent(ctx context.Context, event emit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errClosed
	}
	if _, ok := m.events[event.RunID]; !ok {
		m.order = append(m.order, event.RunID)
	}
	event.Meta = copyMeta(event.Meta)
	m.events[event.RunID] = append(m.events[event.RunID], event)
	return nil
}

// History implements Store.
func (m *MemStore) History(ctx context.Context, runID string) ([]emit.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errClosed
	}
	events, ok := m.events[runID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]emit.Event, len(events))
	copy(out, events)
	return out, nil
}

// Runs implements Store.
func (m *MemStore) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, errClosed
	}

	var out []RunSummary
	for i := len(m.order) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		events := m.events[m.order[i]]
		last := events[len(events)-1]
		out = append(out, RunSummary{
			RunID:     m.order[i],
			Events:    len(events),
			LastMsg:   last.Msg,
			LastRowID: last.RowID,
		})
	}
	return out, nil
}

// Close implements Store.
func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func copyMeta(meta map[string]interface{}) map[string]interface{} {
	if meta == nil {
		return nil
	}
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
