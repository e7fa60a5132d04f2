// Package testutil provides test helpers shared across forexbot packages.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aristath/forexbot/internal/database"
)

// NewTestDB creates a file-backed SQLite database in a temporary directory and
// applies the embedded schema for name (e.g. "history"). The database is
// closed when the test finishes.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	db, err := database.New(database.Config{
		Path:    filepath.Join(t.TempDir(), fmt.Sprintf("test_%s.db", name)),
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}
	return db
}
