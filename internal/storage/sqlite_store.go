package storage

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStateStore persists the routing state in a single-row key-value
// table inside a local SQLite database.
type SQLiteStateStore struct {
	db *sql.DB
}

// OpenSQLiteStateStore opens (creating if needed) the state database at path.
func OpenSQLiteStateStore(path string) (*SQLiteStateStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("empty sqlite path")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &SQLiteStateStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStateStore) initSchema() error {
	if s == nil || s.db == nil {
		return errors.New("nil sqlite store")
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStateStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load reads the persisted state, or nil when the key has never been written.
func (s *SQLiteStateStore) Load() (*PersistedState, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("nil sqlite store")
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM app_state WHERE key = ?`, StateKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select app_state: %w", err)
	}
	return DecodeState([]byte(value))
}

// Save writes the state under the fixed key, replacing any previous entry.
func (s *SQLiteStateStore) Save(state *PersistedState) error {
	if s == nil || s.db == nil {
		return errors.New("nil sqlite store")
	}

	data, err := EncodeState(state)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
INSERT INTO app_state(key, value, updated_at) VALUES(?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		StateKey,
		string(data),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upsert app_state: %w", err)
	}
	return nil
}
