// Package dbtest provides helpers for testing database code.
package dbtest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/starquake/quizstore/internal/docstore/sqlite"
)

// MemoryURI opens a private in-memory SQLite database with foreign keys enabled.
const MemoryURI = "file::memory:?_pragma=foreign_keys(1)"

// SetupTestDB creates a temporary SQLite database file for testing and returns its DSN.
// The file is removed when the test finishes.
func SetupTestDB(t *testing.T) string {
	t.Helper()

	tmpDB, err := os.CreateTemp(t.TempDir(), "quizstore-test-*.sqlite")
	if err != nil {
		t.Fatalf("failed to create temp db: %v", err)
	}
	tmpDBPath := tmpDB.Name()
	err = tmpDB.Close()
	if err != nil {
		t.Fatalf("failed to close temp db: %v", err)
	}

	return fmt.Sprintf(
		"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		tmpDBPath,
	)
}

// Open returns a connected, migrated in-memory store that is closed when the test finishes.
func Open(t *testing.T) *sqlite.Store {
	t.Helper()

	store := OpenUnconnected(t)
	if err := store.Connect(t.Context()); err != nil {
		t.Fatalf("error connecting to SQLite database: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(context.Background()); err != nil {
			t.Errorf("error closing SQLite database: %v", err)
		}
	})

	return store
}

// OpenUnconnected returns an in-memory store on which Connect has not been called.
func OpenUnconnected(t *testing.T) *sqlite.Store {
	t.Helper()

	// A single connection keeps every query on the same in-memory database.
	return sqlite.New(sqlite.Config{URI: MemoryURI, MaxOpenConns: 1, MaxIdleConns: 1}, slog.New(slog.DiscardHandler))
}
