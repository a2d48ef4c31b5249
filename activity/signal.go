package activity

import "context"

// Signal is the token a task returns to select one of its row's outputs.
//
// Signals are compared by identity. Implementations must be comparable
// (pointers or plain structs) because circuits index them in maps.
type Signal interface {
	String() string
}

type token struct {
	name string
}

func (t *token) String() string { return t.name }

// NewSignal returns a fresh signal token. Two calls with the same name
// return distinct signals.
func NewSignal(name string) Signal {
	return &token{name: name}
}

// Built-in signals.
var (
	Right    = NewSignal("Right")
	Left     = NewSignal("Left")
	PassFast = NewSignal("FastTrack.PassFast")
	FailFast = NewSignal("FastTrack.FailFast")
)

// Output pairs a signal with the semantic name used for wiring.
type Output struct {
	Signal   Signal
	Semantic string
}

// NewOutput returns an Output for signal with the given semantic.
func NewOutput(signal Signal, semantic string) Output {
	return Output{Signal: signal, Semantic: semantic}
}

// End is a terminus event. Its task returns the End itself, so the signal
// an invocation finishes with identifies the terminus it reached.
type End struct {
	semantic string
}

// NewEnd returns a terminus with the given semantic.
func NewEnd(semantic string) *End {
	return &End{semantic: semantic}
}

// Semantic returns the terminus semantic, for example "success".
func (e *End) Semantic() string { return e.semantic }

func (e *End) String() string { return "End." + e.semantic }

// Call implements Task.
func (e *End) Call(_ context.Context, args Args) (Signal, Args, error) {
	return e, args, nil
}

// Start is the start event. It always emits Right.
type Start struct {
	semantic string
}

// NewStart returns a start event with the given semantic.
func NewStart(semantic string) *Start {
	return &Start{semantic: semantic}
}

// Semantic returns the start semantic, for example "default".
func (s *Start) Semantic() string { return s.semantic }

func (s *Start) String() string { return "Start." + s.semantic }

// Call implements Task.
func (s *Start) Call(_ context.Context, args Args) (Signal, Args, error) {
	return Right, args, nil
}
