package state

import (
	"context"
	"sync"
)

// MemoryStore keeps the flag in memory. Used in tests and when no file is configured.
type MemoryStore struct {
	mu      sync.Mutex
	enabled bool
	saved   bool

	// SaveErr, if set, is returned by Save.
	SaveErr error
	// Saves counts successful Save calls.
	Saves int
}

// NewMemoryStore creates an empty store. Load returns ErrNotFound until Save is called.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// NewMemoryStoreWith creates a store that already holds enabled.
func NewMemoryStoreWith(enabled bool) *MemoryStore {
	return &MemoryStore{enabled: enabled, saved: true}
}

// Load returns the saved flag.
func (s *MemoryStore) Load(_ context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.saved {
		return false, ErrNotFound
	}
	return s.enabled, nil
}

// Save stores the flag.
func (s *MemoryStore) Save(_ context.Context, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.enabled = enabled
	s.saved = true
	s.Saves++
	return nil
}

// LoadOr returns the stored flag, or def together with the load error.
// Callers usually treat ErrNotFound as success.
func LoadOr(ctx context.Context, s Store, def bool) (bool, error) {
	v, err := s.Load(ctx)
	if err != nil {
		return def, err
	}
	return v, nil
}
