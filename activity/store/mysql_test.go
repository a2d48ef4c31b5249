package store

import (
	"os"
	"testing"
)

// TestMySQLStore runs the store contract against a real MySQL server.
//
// To run this test:
// export TEST_MYSQL_DSN="user:password@tcp(localhost:3306)/test_db?parseTime=true".
// go test -v -run TestMySQLStore ./activity/store.
//
// Each subtest reuses the same table, so run ids are not isolated between
// runs of the suite; use a scratch database.
func TestMySQLStore(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("Skipping MySQL test: Set TEST_MYSQL_DSN environment variable to run")
	}

	runStoreSuite(t, func(t *testing.T) Store {
		st, err := NewMySQLStore(dsn)
		if err != nil {
			t.Fatalf("NewMySQLStore failed: %v", err)
		}
		if _, err := st.db.Exec("DELETE FROM activity_events"); err != nil {
			t.Fatalf("failed to reset table: %v", err)
		}
		t.Cleanup(func() { _ = st.Close() })
		return st
	})
}

func TestNewMySQLStore_InvalidDSN(t *testing.T) {
	if _, err := NewMySQLStore("not a dsn"); err == nil {
		t.Error("expected error for invalid DSN")
	}
}
