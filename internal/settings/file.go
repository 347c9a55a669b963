package settings

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// DefaultPath returns the default location for a backend's data.
func DefaultPath(backend string) string {
	dir := ".evidence-lens"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".config", "evidence-lens")
	}
	if backend == "sqlite" {
		return filepath.Join(dir, "settings.db")
	}
	return filepath.Join(dir, "settings.yaml")
}

// FileStore keeps settings in a YAML file. The file holds an API key, so it
// is written with mode 0600.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(ctx context.Context) (Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("reading settings: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}, fmt.Errorf("parsing settings file %s: %w", f.path, err)
	}
	return s.WithDefaults(), nil
}

func (f *FileStore) Save(ctx context.Context, s Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}
	return nil
}

func (f *FileStore) Close() error { return nil }
