// Package testutil opens migrated in-memory databases for tests.
package testutil

import (
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DukeRupert/convertly/internal"
	"github.com/DukeRupert/convertly/internal/repository"

	_ "modernc.org/sqlite"
)

var dbSeq atomic.Int64

// NewTestDB creates an in-memory SQLite database with all migrations applied.
// The pool is limited to one connection so the memory database lives as long
// as the test.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:convertly_test_%d_%d?mode=memory&cache=shared&_pragma=busy_timeout(5000)",
		time.Now().UnixNano(), dbSeq.Add(1))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := internal.RunMigrations(db, internal.DriverSQLite); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

// NewTestQueries returns Queries over a fresh test database.
func NewTestQueries(t *testing.T) (*repository.Queries, *sql.DB) {
	t.Helper()
	db := NewTestDB(t)
	return repository.New(db, internal.DriverSQLite), db
}
