package activity

// SearchStrategy resolves a connection target to a row.
//
// Strategies are comparable values so that connection tables can be
// compared with ==.
type SearchStrategy interface {
	// Name identifies the strategy in inspection output.
	Name() string

	// Find returns the row that satisfies target when searching from from.
	Find(seq Sequence, from *Row, target string) (*Row, bool)
}

type forward struct{}

// Forward finds the first row after from, in structural order, whose
// MagneticTo contains the target semantic.
var Forward SearchStrategy = forward{}

func (forward) Name() string { return "Forward" }

func (forward) Find(seq Sequence, from *Row, target string) (*Row, bool) {
	start := 0
	if from != nil {
		start = seq.Index(from.ID) + 1
	}
	for _, r := range seq.rows[start:] {
		if r.IsMagneticTo(target) {
			return r, true
		}
	}
	return nil, false
}

type noop struct{}

// Noop resolves to the searching row itself. Termini use it for their
// self-referential output.
var Noop SearchStrategy = noop{}

func (noop) Name() string { return "Noop" }

func (noop) Find(_ Sequence, from *Row, _ string) (*Row, bool) {
	return from, from != nil
}

type byID struct{}

// ByID resolves the target as a row id, regardless of magnetism or order.
var ByID SearchStrategy = byID{}

func (byID) Name() string { return "ById" }

func (byID) Find(seq Sequence, _ *Row, target string) (*Row, bool) {
	return seq.Find(target)
}
