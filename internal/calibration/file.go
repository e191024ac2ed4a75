package calibration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// fileFormat is the on-disk layout of the calibration file.
type fileFormat struct {
	Multipliers map[string]float64 `yaml:"multipliers"`
}

// FileStore persists a Store's overrides to a YAML file.
type FileStore struct {
	mu   sync.Mutex // serializes Save
	path string
}

// NewFileStore returns a persister for path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the calibration file into a new Store. A missing file
// yields an empty store.
func (f *FileStore) Load() (*Store, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewStore(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var ff fileFormat
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("unmarshal calibration yaml: %w", err)
	}
	return NewStore(ff.Multipliers), nil
}

// Save writes the store's current overrides, replacing the file atomically.
// It is safe to call from concurrent OnChange hooks; the last Save to run
// writes the latest snapshot.
func (f *FileStore) Save(s *Store) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := yaml.Marshal(fileFormat{Multipliers: s.Snapshot()})
	if err != nil {
		return fmt.Errorf("marshal calibration yaml: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create calibration dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".calibration-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp calibration file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write calibration file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close calibration file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace calibration file: %w", err)
	}
	return nil
}
