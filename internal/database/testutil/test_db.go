// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/database"
)

// Options selects how much of the schema a test database starts with.
type Options struct {
	// Migrate creates every table.
	Migrate bool
	// Seed, when set, implies Migrate and inserts the bootstrap admin.
	Seed *database.Seed
	// Fixtures are inserted in order after migration.
	Fixtures []any
}

// Migrated is the common case: an empty but fully migrated schema.
var Migrated = Options{Migrate: true}

// NewDB opens a private in-memory SQLite database. Each call gets its own
// named shared-cache database so parallel tests never see each other's rows.
// The connection is closed when the test ends.
func NewDB(t testing.TB, opts Options) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{Driver: "sqlite", Path: "memory:" + uuid.NewString()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	switch {
	case opts.Seed != nil:
		require.NoError(t, database.AutoMigrateAndSeed(db, *opts.Seed))
	case opts.Migrate || len(opts.Fixtures) > 0:
		require.NoError(t, database.AutoMigrate(db))
	}

	for _, fixture := range opts.Fixtures {
		require.NoError(t, db.Create(fixture).Error, "insert fixture %T", fixture)
	}
	return db
}
