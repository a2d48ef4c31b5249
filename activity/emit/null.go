package emit

// NullEmitter implements Emitter by discarding all events.
//
// Circuits compiled without WithEmitter use it.
type NullEmitter struct{}

// NewNullEmitter creates a new NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(Event) {}
