package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dshills/activity-go/activity/emit"
)

// sqlStore holds the queries shared by the SQLite and MySQL stores. Both
// drivers accept "?" placeholders; only the schema differs.
type sqlStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

func (s *sqlStore) migrate(ctx context.Context, statements []string) error {
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return nil
}

// SaveEvent implements Store.
func (s *sqlStore) SaveEvent(ctx context.Context, event emit.Event) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	meta := []byte("null")
	if event.Meta != nil {
		var err error
		meta, err = json.Marshal(event.Meta)
		if err != nil {
			return fmt.Errorf("failed to marshal event meta: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO activity_events (run_id, step, row_id, msg, meta) VALUES (?, ?, ?, ?, ?)",
		event.RunID, event.Step, event.RowID, event.Msg, string(meta),
	)
	if err != nil {
		return fmt.Errorf("failed to save event: %w", err)
	}
	return nil
}

// History implements Store. Meta values come back as decoded JSON, so
// numbers are float64.
func (s *sqlStore) History(ctx context.Context, runID string) ([]emit.Event, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT step, row_id, msg, meta FROM activity_events WHERE run_id = ? ORDER BY id",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []emit.Event
	for rows.Next() {
		var (
			e    = emit.Event{RunID: runID}
			meta string
		)
		if err := rows.Scan(&e.Step, &e.RowID, &e.Msg, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &e.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event meta: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events, nil
}

// Runs implements Store.
func (s *sqlStore) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT e.run_id, agg.n, e.msg, e.row_id
		FROM activity_events e
		JOIN (
			SELECT run_id, COUNT(*) AS n, MIN(id) AS first_id, MAX(id) AS last_id
			FROM activity_events
			GROUP BY run_id
		) agg ON e.id = agg.last_id
		ORDER BY agg.first_id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.Events, &r.LastMsg, &r.LastRowID); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *sqlStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
