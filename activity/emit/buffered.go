package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory.
//
// Events are organized by runID and can be queried with a HistoryFilter.
// It is the emitter of choice for tests and for inspecting a single
// invocation after the fact.
//
// Warning: This emitter keeps every event. Call Clear for long-lived
// processes, or record events in a store.Store instead.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	circuit, _ := activity.Compile(seq, activity.WithEmitter(emitter))
//
//	circuit.Invoke(ctx, activity.Right, data, nil)
//
//	for _, runID := range emitter.Runs() {
//		ends := emitter.GetHistoryWithFilter(runID, emit.HistoryFilter{Msg: "step_end"})
//		...
//	}
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // runID -> events
	order  []string           // runIDs in first-seen order
}

// HistoryFilter specifies criteria for filtering execution history.
//
// All filter fields are optional. When multiple fields are set, they are
// combined with AND logic.
type HistoryFilter struct {
	RowID   string // Filter by row ID (empty = no filter)
	Msg     string // Filter by message (empty = no filter)
	MinStep *int   // Minimum step number (nil = no filter)
	MaxStep *int   // Maximum step number (nil = no filter)
}

// NewBufferedEmitter creates a new BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores an event in the buffer.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.events[event.RunID]; !ok {
		b.order = append(b.order, event.RunID)
	}
	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// Runs returns the run ids seen so far, in first-seen order.
func (b *BufferedEmitter) Runs() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, len(b.order))
	copy(out, b.order)
	return out
}

// GetHistory retrieves all events for a specific runID in emission order.
// Returns an empty slice if no events exist for the given runID.
func (b *BufferedEmitter) GetHistory(runID string) []Event {
	return b.GetHistoryWithFilter(runID, HistoryFilter{})
}

// GetHistoryWithFilter retrieves the events of runID matching filter.
//
// Example:
//
//	minStep, maxStep := 2, 4
//	filter := emit.HistoryFilter{
//		Msg:     "step_end",
//		MinStep: &minStep,
//		MaxStep: &maxStep,
//	}
//	steps := emitter.GetHistoryWithFilter(runID, filter)
func (b *BufferedEmitter) GetHistoryWithFilter(runID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[runID] {
		if filter.Matches(event) {
			result = append(result, event)
		}
	}
	return result
}

// Matches reports whether event satisfies every set criterion.
func (f HistoryFilter) Matches(event Event) bool {
	if f.RowID != "" && event.RowID != f.RowID {
		return false
	}
	if f.Msg != "" && event.Msg != f.Msg {
		return false
	}
	if f.MinStep != nil && event.Step < *f.MinStep {
		return false
	}
	if f.MaxStep != nil && event.Step > *f.MaxStep {
		return false
	}
	return true
}

// Clear removes stored events.
//
// If runID is non-empty, clears only events for that specific run.
// If runID is empty, clears all stored events across all runs.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runID == "" {
		b.events = make(map[string][]Event)
		b.order = nil
		return
	}

	delete(b.events, runID)
	for i, id := range b.order {
		if id == runID {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
}
