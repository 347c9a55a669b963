package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps settings as key/value rows, one row per settings key
// with a JSON-encoded value.
type SQLiteStore struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`)
	return err
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// fields maps each stored key to its Settings field.
func fields(st *Settings) map[string]any {
	return map[string]any{
		"provider":          &st.Provider,
		"apiKey":            &st.APIKey,
		"endpoint":          &st.Endpoint,
		"maxChars":          &st.MaxChars,
		"promptPy":          &st.PromptPy,
		"model_by_provider": &st.ModelByProvider,
		"models_cache":      &st.ModelsCache,
	}
}

func (s *SQLiteStore) Load(ctx context.Context) (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}
	defer rows.Close()

	var out Settings
	dst := fields(&out)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Settings{}, fmt.Errorf("reading settings: %w", err)
		}
		ptr, ok := dst[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal([]byte(value), ptr); err != nil {
			return Settings{}, fmt.Errorf("decoding setting %s: %w", key, err)
		}
	}
	if err := rows.Err(); err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}
	return out.WithDefaults(), nil
}

func (s *SQLiteStore) Save(ctx context.Context, st Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	defer tx.Rollback()

	for key, ptr := range fields(&st) {
		value, err := json.Marshal(ptr)
		if err != nil {
			return fmt.Errorf("encoding setting %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, string(value)); err != nil {
			return fmt.Errorf("writing setting %s: %w", key, err)
		}
	}
	return tx.Commit()
}
