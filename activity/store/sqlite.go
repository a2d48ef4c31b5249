package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file Store backed by modernc.org/sqlite.
//
// Designed for:
//   - Local development and the CLI's history command
//   - Single-process services that want traces to survive restarts
//
// Uses WAL mode so history reads do not block event writes.
//
// Schema:
//   - activity_events: one row per event, ordered by id
type SQLiteStore struct {
	sqlStore
	path string
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS activity_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		row_id TEXT NOT NULL,
		msg TEXT NOT NULL,
		meta TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	"CREATE INDEX IF NOT EXISTS idx_events_run_id ON activity_events(run_id)",
}

// NewSQLiteStore opens (creating if needed) the database at path.
//
// The path parameter specifies the database file location:
//   - "./trace.db" - file in current directory
//   - ":memory:" - in-memory database (data lost on close)
//
// Example:
//
//	st, err := store.NewSQLiteStore("./trace.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite supports one writer at a time
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure SQLite (%s): %w", pragma, err)
		}
	}

	s := &SQLiteStore{sqlStore: sqlStore{db: db}, path: path}
	if err := s.migrate(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database location.
func (s *SQLiteStore) Path() string { return s.path }
