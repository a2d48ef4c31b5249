package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a Store backed by MySQL, for services where several
// processes share one trace.
//
// DSN format: "user:password@tcp(host:3306)/dbname?parseTime=true"
type MySQLStore struct {
	sqlStore
}

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS activity_events (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		run_id VARCHAR(255) NOT NULL,
		step INT NOT NULL,
		row_id VARCHAR(255) NOT NULL,
		msg VARCHAR(64) NOT NULL,
		meta JSON NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_run_id (run_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
}

// NewMySQLStore connects to dsn, verifies the connection and creates the
// schema if needed.
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	s := &MySQLStore{sqlStore: sqlStore{db: db}}
	if err := s.migrate(ctx, mysqlSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}
