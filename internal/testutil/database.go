package testutil

import (
	"testing"

	"genstudio/internal/database"
	"genstudio/internal/studio"
)

// NewTestRecordBackend creates an in-memory SQLite record backend with all
// migrations applied. It is closed when the test completes.
func NewTestRecordBackend(t *testing.T) *database.SQLiteRecords {
	t.Helper()

	db, err := database.NewSQLiteRecords(":memory:", studio.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to open record backend: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// NewTestStore creates a Store over an in-memory key/value backend and an
// in-memory SQLite record backend.
func NewTestStore(t *testing.T) *studio.Store {
	t.Helper()
	return studio.NewStore(NewTestKV(), NewTestRecordBackend(t), studio.NewRegistry(studio.StructuredCollections), studio.NewNopLogger())
}
