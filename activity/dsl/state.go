package dsl

import (
	"fmt"

	"github.com/dshills/activity-go/activity"
)

// State is what a builder accumulates: the compiled normalizers of its
// flavor, the sequence so far and free-form fields.
//
// Writes replace the sequence or the fields wholesale, so a State obtained
// from Copy can diverge without affecting the original.
type State struct {
	normalizers map[StepKind]*Normalizer
	sequence    activity.Sequence
	fields      map[string]any
}

// NewState returns a State starting from seq.
func NewState(normalizers map[StepKind]*Normalizer, seq activity.Sequence, fields map[string]any) *State {
	return &State{normalizers: normalizers, sequence: seq, fields: copyMap(fields)}
}

// Copy returns an independent State with the same sequence and fields.
// Normalizers are stateless and shared.
func (s *State) Copy() *State {
	return NewState(s.normalizers, s.sequence, s.fields)
}

// Sequence returns the current sequence.
func (s *State) Sequence() activity.Sequence { return s.sequence }

// Normalizer returns the normalizer for kind.
func (s *State) Normalizer(kind StepKind) (*Normalizer, error) {
	n, ok := s.normalizers[kind]
	if !ok {
		return nil, fmt.Errorf("no normalizer for %s", kind)
	}
	return n, nil
}

// UpdateSequence replaces the sequence with the result of fn. On error the
// state is unchanged.
func (s *State) UpdateSequence(fn func(activity.Sequence) (activity.Sequence, error)) error {
	seq, err := fn(s.sequence)
	if err != nil {
		return err
	}
	s.sequence = seq
	return nil
}

// Field returns a field value.
func (s *State) Field(key string) (any, bool) {
	v, ok := s.fields[key]
	return v, ok
}

// UpdateFields merges fields over the current ones into a new map.
func (s *State) UpdateFields(fields map[string]any) {
	next := copyMap(s.fields)
	for k, v := range fields {
		next[k] = v
	}
	s.fields = next
}
