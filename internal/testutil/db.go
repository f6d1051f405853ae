// Package testutil provides a throwaway SQLite database carrying the same
// tables as the production MySQL schema, for repository, service and HTTP
// tests.
package testutil

import (
	"context"
	"database/sql"
	_ "embed"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ramtunguturi36/cvb/internal/database"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// NewDB opens a SQLite database in a temp dir and creates the schema.  The
// pool is limited to one connection so that tests observe a single writer,
// which is what the conditional UPDATE statements are designed around.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cvb.db")
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Apply(context.Background(), db, sqliteSchema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	return db
}
