package activity

import "fmt"

// InsertStrategy selects how Insert places a row relative to its anchor.
type InsertStrategy int

// Insert strategies.
const (
	InsertAppend InsertStrategy = iota + 1
	InsertPrepend
	InsertReplace
	InsertDelete
)

func (s InsertStrategy) String() string {
	switch s {
	case InsertAppend:
		return "Append"
	case InsertPrepend:
		return "Prepend"
	case InsertReplace:
		return "Replace"
	case InsertDelete:
		return "Delete"
	default:
		return fmt.Sprintf("InsertStrategy(%d)", int(s))
	}
}

// Placement is an insert strategy bound to an anchor id.
type Placement struct {
	Strategy InsertStrategy
	Anchor   string
}

func (p Placement) String() string {
	return p.Strategy.String() + "(" + p.Anchor + ")"
}

// Append places a row immediately after anchor.
func Append(anchor string) Placement { return Placement{Strategy: InsertAppend, Anchor: anchor} }

// After is Append.
func After(anchor string) Placement { return Append(anchor) }

// Prepend places a row immediately before anchor.
func Prepend(anchor string) Placement { return Placement{Strategy: InsertPrepend, Anchor: anchor} }

// Before is Prepend.
func Before(anchor string) Placement { return Prepend(anchor) }

// Replace swaps the anchor row for the new row, keeping its position.
func Replace(anchor string) Placement { return Placement{Strategy: InsertReplace, Anchor: anchor} }

// Delete removes the anchor row.
func Delete(anchor string) Placement { return Placement{Strategy: InsertDelete, Anchor: anchor} }

// Insert returns a new sequence with row placed according to p. seq is
// left untouched. row may be nil for Delete.
//
// Errors:
//   - *ReferenceError when the anchor is not in seq
//   - *DuplicateIDError when row's id already exists (Replace may reuse the anchor's id)
func Insert(seq Sequence, row *Row, p Placement) (Sequence, error) {
	if row == nil && p.Strategy != InsertDelete {
		return Sequence{}, &CompileError{Message: "nil row", Code: "INVALID_ROW"}
	}
	if row != nil && row.ID == "" {
		return Sequence{}, &CompileError{Message: "row id cannot be empty", Code: "INVALID_ROW"}
	}
	rows, err := place(seq.rows, row, p, "row")
	if err != nil {
		return Sequence{}, err
	}
	return Sequence{rows: rows}, nil
}
