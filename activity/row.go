package activity

// Connection says how a row's output is wired: search with Search for the
// row matching Target. Connections are comparable values.
type Connection struct {
	Search SearchStrategy
	Target string
}

// NewConnection returns a Connection.
func NewConnection(search SearchStrategy, target string) Connection {
	return Connection{Search: search, Target: target}
}

// Row is one step of a sequence.
//
// Rows are not mutated once they are part of a Sequence; insertion always
// produces a new Sequence.
type Row struct {
	// ID is unique within a sequence.
	ID string

	// Task is invoked when the row runs.
	Task Task

	// MagneticTo lists the semantics this row attracts. A nil slice makes the
	// row reachable only by explicit id wiring.
	MagneticTo []string

	// Outputs maps semantic to output. Semantics are unique per row.
	Outputs map[string]Output

	// Connections maps an output semantic to how it is wired.
	Connections map[string]Connection

	// Terminus marks an end event. Invocation stops after a terminus runs.
	Terminus bool

	// Extensions are applied to the default task-wrap pipeline when the row
	// is compiled.
	Extensions []Extension
}

// RowID returns the row id.
func (r *Row) RowID() string { return r.ID }

// IsMagneticTo reports whether the row attracts semantic.
func (r *Row) IsMagneticTo(semantic string) bool {
	for _, m := range r.MagneticTo {
		if m == semantic {
			return true
		}
	}
	return false
}

// SemanticFor returns the semantic of the output whose signal is sig.
func (r *Row) SemanticFor(sig Signal) (string, bool) {
	for sem, out := range r.Outputs {
		if out.Signal == sig {
			return sem, true
		}
	}
	return "", false
}

// StartRow returns the start event row: it emits Right, declared as the
// "success" output, wired forward to "success".
func StartRow(id string) *Row {
	return &Row{
		ID:          id,
		Task:        NewStart("default"),
		Outputs:     map[string]Output{"success": NewOutput(Right, "success")},
		Connections: map[string]Connection{"success": NewConnection(Forward, "success")},
	}
}

// EndRow returns a terminus row for end, magnetic to magneticTo. Its only
// output is the End itself, wired to itself.
func EndRow(id string, end *End, magneticTo ...string) *Row {
	return &Row{
		ID:          id,
		Task:        end,
		MagneticTo:  magneticTo,
		Outputs:     map[string]Output{end.Semantic(): NewOutput(end, end.Semantic())},
		Connections: map[string]Connection{end.Semantic(): NewConnection(Noop, id)},
		Terminus:    true,
	}
}
