package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lherron/amyq/internal/db"
)

// TempDB creates a migrated temporary SQLite database for testing
func TempDB(t *testing.T) *db.DB {
	t.Helper()
	database, _ := TempDBPath(t)
	return database
}

// TempDBPath is TempDB that also returns the database file path, for tests
// that open a second connection or hand the path to a command.
func TempDBPath(t *testing.T) (*db.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	database, err := db.Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	if err := database.Migrate(); err != nil {
		database.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database, dbPath
}

// WriteFile writes content to a file in dir
func WriteFile(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
	return path
}
