// Package testutil provides shared test helpers for setting up workspaces
// and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/vheim/othala/internal/index"
	"github.com/vheim/othala/internal/storage"
	"github.com/vheim/othala/internal/workspace"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "othala-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestStore creates a temporary workspace directory with a storage.Provider.
func TestStore(t *testing.T) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// TestWorkspace wires a workspace service over a temp store and database.
func TestWorkspace(t *testing.T) *workspace.Service {
	t.Helper()
	_, store := TestStore(t)
	db := TestDB(t)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return workspace.NewService(store, db, logger)
}
