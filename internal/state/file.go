package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/htbalar/vehicle-safety/internal/config"
)

// Store loads and saves one persisted flag.
type Store interface {
	Load(ctx context.Context) (bool, error)
	Save(ctx context.Context, enabled bool) error
}

// ErrNotFound is returned when the flag has never been saved.
var ErrNotFound = errors.New("state not found")

// errInvalidState is returned when the file has no boolean "enabled" key.
var errInvalidState = errors.New("state file has no boolean enabled field")

type fileContents struct {
	Enabled *bool `json:"enabled"`
}

// FileStore persists a flag to a JSON file on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store reading and writing path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: filepath.Clean(path)}
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the flag from disk.
func (s *FileStore) Load(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	contents, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("read state file: %w", err)
	}

	var data fileContents
	if err := json.Unmarshal(contents, &data); err != nil {
		return false, fmt.Errorf("decode state file: %w", err)
	}
	if data.Enabled == nil {
		return false, errInvalidState
	}

	return *data.Enabled, nil
}

// Save writes the flag to disk, creating the parent directory if needed.
func (s *FileStore) Save(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(fileContents{Enabled: &enabled}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	if err := os.WriteFile(s.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}
