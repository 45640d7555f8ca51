package db_test

import (
	"path/filepath"
	"testing"

	"github.com/DonovanMods/starmod/internal/storage/db"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, database.Close())
	})
	return database
}

func TestNew_RunsMigrations(t *testing.T) {
	database := newTestDB(t)

	var count int
	assert.NoError(t, database.QueryRow("SELECT COUNT(*) FROM deployed_files").Scan(&count))
	assert.NoError(t, database.QueryRow("SELECT COUNT(*) FROM backups").Scan(&count))

	var version int
	require.NoError(t, database.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starmod.db")

	first, err := db.New(path)
	require.NoError(t, err)
	require.NoError(t, first.SaveDeployedFile("/game", "data/a.esp", "alpha", "data/a.esp"))
	require.NoError(t, first.Close())

	second, err := db.New(path)
	require.NoError(t, err)
	defer second.Close()

	owner, err := second.GetFileOwner("/game", "data/a.esp")
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Equal(t, "alpha", owner.Mod)
}
