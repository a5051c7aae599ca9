package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/taskmaster/taskclient/internal/ports"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func checkKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}
	return nil
}

// FileSessionStorage keeps one file per key inside a profile directory.
type FileSessionStorage struct {
	dir string
}

// NewFileSessionStorage creates a file-backed storage rooted at dir.
func NewFileSessionStorage(dir string) ports.SessionStorage {
	return &FileSessionStorage{dir: dir}
}

func (s *FileSessionStorage) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *FileSessionStorage) Get(key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read session file: %w", err)
	}
	return string(data), true, nil
}

// Set writes through a temp file and rename so a crash never leaves a
// half-written record behind.
func (s *FileSessionStorage) Set(key, value string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (s *FileSessionStorage) Remove(key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

// SQLiteSessionStorage keeps entries in the session_entries table, one row
// per (profile, key).
type SQLiteSessionStorage struct {
	db      *sqlx.DB
	profile string
}

// NewSQLiteSessionStorage creates a sqlite-backed storage for one profile.
func NewSQLiteSessionStorage(db *sqlx.DB, profile string) ports.SessionStorage {
	return &SQLiteSessionStorage{db: db, profile: profile}
}

func (s *SQLiteSessionStorage) Get(key string) (string, bool, error) {
	query := `SELECT value FROM session_entries WHERE profile = ? AND key = ?`

	var value string
	err := s.db.Get(&value, query, s.profile, key)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get session entry: %w", err)
	}
	return value, true, nil
}

func (s *SQLiteSessionStorage) Set(key, value string) error {
	query := `
		INSERT INTO session_entries (profile, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (profile, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.Exec(query, s.profile, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("set session entry: %w", err)
	}
	return nil
}

func (s *SQLiteSessionStorage) Remove(key string) error {
	query := `DELETE FROM session_entries WHERE profile = ? AND key = ?`

	if _, err := s.db.Exec(query, s.profile, key); err != nil {
		return fmt.Errorf("remove session entry: %w", err)
	}
	return nil
}

// MemorySessionStorage keeps entries for the lifetime of the process.
type MemorySessionStorage struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemorySessionStorage creates an empty in-memory storage.
func NewMemorySessionStorage() *MemorySessionStorage {
	return &MemorySessionStorage{entries: make(map[string]string)}
}

func (s *MemorySessionStorage) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *MemorySessionStorage) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *MemorySessionStorage) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
