package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/taskclient/internal/infrastructure/database"
	"github.com/taskmaster/taskclient/internal/ports"
)

func storages(t *testing.T) map[string]ports.SessionStorage {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]ports.SessionStorage{
		"file":   NewFileSessionStorage(filepath.Join(t.TempDir(), "default")),
		"sqlite": NewSQLiteSessionStorage(db.DB, "default"),
		"memory": NewMemorySessionStorage(),
	}
}

func TestSessionStorageRoundTrip(t *testing.T) {
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get("current_user")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set("current_user", `{"id":"1"}`))
			v, ok, err := s.Get("current_user")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, `{"id":"1"}`, v)

			require.NoError(t, s.Set("current_user", `{"id":"2"}`))
			v, _, err = s.Get("current_user")
			require.NoError(t, err)
			assert.Equal(t, `{"id":"2"}`, v, "set overwrites")

			require.NoError(t, s.Remove("current_user"))
			_, ok, err = s.Get("current_user")
			require.NoError(t, err)
			assert.False(t, ok)

			assert.NoError(t, s.Remove("current_user"), "removing a missing key is fine")
		})
	}
}

func TestSQLiteSessionStorageIsolatesProfiles(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	defer db.Close()

	work := NewSQLiteSessionStorage(db.DB, "work")
	home := NewSQLiteSessionStorage(db.DB, "home")

	require.NoError(t, work.Set("current_user", "w"))
	_, ok, err := home.Get("current_user")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, home.Set("current_user", "h"))
	require.NoError(t, work.Remove("current_user"))
	v, ok, err := home.Get("current_user")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "h", v)
}

func TestFileSessionStorageLayout(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "default")
	s := NewFileSessionStorage(dir)

	require.NoError(t, s.Set("current_user", "{}"))

	info, err := os.Stat(filepath.Join(dir, "current_user.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileSessionStorageRejectsPathKeys(t *testing.T) {
	s := NewFileSessionStorage(t.TempDir())
	assert.Error(t, s.Set("../escape", "x"))
	_, _, err := s.Get("a/b")
	assert.Error(t, err)
	assert.Error(t, s.Remove(""))
}
