package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, path, db.Path())

	var count int
	require.NoError(t, db.DB.Get(&count, `SELECT COUNT(*) FROM session_entries`))
	assert.Zero(t, count)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")

	first, err := Open(path)
	require.NoError(t, err)
	_, err = first.DB.Exec(`INSERT INTO session_entries (profile, key, value) VALUES ('default', 'k', 'v')`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	defer second.Close()

	var value string
	require.NoError(t, second.DB.Get(&value, `SELECT value FROM session_entries WHERE profile = 'default' AND key = 'k'`))
	assert.Equal(t, "v", value)
}

func TestMigrateDownAndVersion(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer db.Close()

	version, dirty, err := db.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateDown())
	version, _, err = db.Version()
	require.NoError(t, err)
	assert.Zero(t, version)

	_, err = db.DB.Exec(`SELECT COUNT(*) FROM session_entries`)
	assert.Error(t, err, "table is gone")

	require.NoError(t, db.Migrate())
}

func TestConnectLeavesSchemaAlone(t *testing.T) {
	db, err := Connect(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer db.Close()

	version, _, err := db.Version()
	require.NoError(t, err)
	assert.Zero(t, version)

	require.NoError(t, db.Migrate())
	version, _, err = db.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
}
