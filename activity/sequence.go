package activity

// identified is satisfied by rows and task-wrap stages so that both can
// share the same insertion and search primitives.
type identified interface {
	RowID() string
}

func indexOf[R identified](items []R, id string) int {
	for i, item := range items {
		if item.RowID() == id {
			return i
		}
	}
	return -1
}

func insertAt[R any](items []R, i int, item R) []R {
	out := make([]R, 0, len(items)+1)
	out = append(out, items[:i]...)
	out = append(out, item)
	return append(out, items[i:]...)
}

func replaceAt[R any](items []R, i int, item R) []R {
	out := make([]R, len(items))
	copy(out, items)
	out[i] = item
	return out
}

func removeAt[R any](items []R, i int) []R {
	out := make([]R, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

// place applies p to items without modifying them. item is ignored for
// InsertDelete.
func place[R identified](items []R, item R, p Placement, kind string) ([]R, error) {
	i := indexOf(items, p.Anchor)
	if i < 0 {
		return nil, &ReferenceError{Kind: kind, ID: p.Anchor}
	}

	switch p.Strategy {
	case InsertDelete:
		return removeAt(items, i), nil
	case InsertReplace:
		if j := indexOf(items, item.RowID()); j >= 0 && j != i {
			return nil, &DuplicateIDError{ID: item.RowID()}
		}
		return replaceAt(items, i, item), nil
	case InsertAppend, InsertPrepend:
		if indexOf(items, item.RowID()) >= 0 {
			return nil, &DuplicateIDError{ID: item.RowID()}
		}
		if p.Strategy == InsertAppend {
			i++
		}
		return insertAt(items, i, item), nil
	default:
		return nil, &CompileError{Message: "unknown insert strategy " + p.Strategy.String(), Code: "INVALID_PLACEMENT"}
	}
}

// Sequence is an immutable ordered list of rows. Order is structural order:
// forward search walks it, and the first row is where invocations start.
type Sequence struct {
	rows []*Row
}

// NewSequence returns a sequence holding rows in the given order.
func NewSequence(rows ...*Row) (Sequence, error) {
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r == nil {
			return Sequence{}, &CompileError{Message: "nil row", Code: "INVALID_ROW"}
		}
		if r.ID == "" {
			return Sequence{}, &CompileError{Message: "row id cannot be empty", Code: "INVALID_ROW"}
		}
		if seen[r.ID] {
			return Sequence{}, &DuplicateIDError{ID: r.ID}
		}
		seen[r.ID] = true
	}
	out := make([]*Row, len(rows))
	copy(out, rows)
	return Sequence{rows: out}, nil
}

// Len returns the number of rows.
func (s Sequence) Len() int { return len(s.rows) }

// Rows returns the rows in structural order.
func (s Sequence) Rows() []*Row {
	out := make([]*Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// At returns the row at position i.
func (s Sequence) At(i int) *Row { return s.rows[i] }

// Index returns the position of id, or -1.
func (s Sequence) Index(id string) int { return indexOf(s.rows, id) }

// Find returns the row with the given id.
func (s Sequence) Find(id string) (*Row, bool) {
	i := s.Index(id)
	if i < 0 {
		return nil, false
	}
	return s.rows[i], true
}

// Start returns the first row.
func (s Sequence) Start() (*Row, bool) {
	if len(s.rows) == 0 {
		return nil, false
	}
	return s.rows[0], true
}

// IDs returns the row ids in structural order.
func (s Sequence) IDs() []string {
	ids := make([]string, len(s.rows))
	for i, r := range s.rows {
		ids[i] = r.ID
	}
	return ids
}
