package emit

// Emitter receives observability events from circuit invocations.
//
// Implementations should be:
//   - Non-blocking: Avoid slowing down the invocation
//   - Thread-safe: One circuit may be invoked from many goroutines
//   - Resilient: Handle failures internally, never panic
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	Emit(event Event)
}

// MultiEmitter fans every event out to several emitters, in order.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter returns an emitter that forwards to every non-nil emitter.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	m := &MultiEmitter{}
	for _, e := range emitters {
		if e != nil {
			m.emitters = append(m.emitters, e)
		}
	}
	return m
}

// Emit forwards event to every emitter.
func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}
