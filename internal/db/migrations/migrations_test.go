package migrations

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateFreshDatabase(t *testing.T) {
	db := openTestDB(t)
	mgr := New(db, nil)

	require.NoError(t, mgr.Migrate())

	version, err := mgr.CurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, mgr.TargetVersion(), version)

	// All core tables exist after migration.
	for _, table := range []string{"branches", "products", "inventory", "transactions", "sync_log", "sync_config"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	mgr := New(db, nil)

	require.NoError(t, mgr.Migrate())
	require.NoError(t, mgr.Migrate())

	history, err := mgr.History()
	require.NoError(t, err)
	assert.Len(t, history, mgr.TargetVersion())
	assert.Equal(t, 1, history[0].Version)
	assert.Equal(t, "base schema", history[0].Description)
}

func TestMigrateRejectsNewerSchema(t *testing.T) {
	db := openTestDB(t)
	mgr := New(db, nil)
	require.NoError(t, mgr.Migrate())

	_, err := db.Exec(
		"INSERT INTO schema_version (version, description, applied_at) VALUES (999, 'future', 0)")
	require.NoError(t, err)

	assert.Error(t, mgr.Migrate())
}
