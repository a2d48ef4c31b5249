package activity

import "context"

// railwayRow returns a row with success/failure outputs wired forward.
func railwayRow(id string, task Task) *Row {
	return &Row{
		ID:         id,
		Task:       task,
		MagneticTo: []string{"success"},
		Outputs: map[string]Output{
			"success": NewOutput(Right, "success"),
			"failure": NewOutput(Left, "failure"),
		},
		Connections: map[string]Connection{
			"success": NewConnection(Forward, "success"),
			"failure": NewConnection(Forward, "failure"),
		},
	}
}

// plainRow returns a bare row with the given id and a no-op task.
func plainRow(id string) *Row {
	return &Row{ID: id, Task: returning(Right)}
}

func returning(sig Signal) Task {
	return TaskFunc(func(_ context.Context, args Args) (Signal, Args, error) {
		return sig, args, nil
	})
}

// railway returns Start, the given rows, End.success and End.failure.
func railway(rows ...*Row) Sequence {
	all := []*Row{StartRow("Start.default")}
	all = append(all, rows...)
	all = append(all,
		EndRow("End.success", NewEnd("success"), "success"),
		EndRow("End.failure", NewEnd("failure"), "failure"),
	)
	seq, err := NewSequence(all...)
	if err != nil {
		panic(err)
	}
	return seq
}

func ids(seq Sequence) []string { return seq.IDs() }
