// Package emit delivers observability events produced while a circuit runs.
package emit

// Event represents an observability event emitted during an invocation.
//
// Circuits emit:
//   - "invocation_start" when an invocation begins (Step 0)
//   - "step_start" / "step_end" around every row
//   - "invocation_end" when a terminus is reached
//   - "invocation_error" when the invocation fails
type Event struct {
	// RunID identifies the invocation that emitted this event.
	RunID string

	// Step is the sequential step number (1-indexed).
	// Zero for invocation-level events.
	Step int

	// RowID identifies which row emitted this event.
	// Empty string for invocation-level events.
	RowID string

	// Msg is the event kind.
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "signal": Signal returned by the row
	//   - "semantic": Output semantic the signal mapped to
	//   - "next": Row selected by routing
	//   - "latency_ms": Row duration in milliseconds
	//   - "error": Error details
	//   - "circuit": Circuit name, when configured
	Meta map[string]interface{}
}
