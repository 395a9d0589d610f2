// Package store implements the token persistence backends. Every backend keeps
// the credential as the three named entries defined in internal/auth and
// replaces them as a whole on Put.
package store

import (
	"context"
	"maps"
	"sync"

	"github.com/carlwiddowson/googleadsdashboard/internal/auth"
)

// MemoryStore keeps the entries in process memory. It backs tests and -ephemeral runs.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]string)}
}

// Get implements auth.Store.
func (s *MemoryStore) Get(_ context.Context) (*auth.TokenSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return auth.TokenSetFromEntries(s.entries)
}

// Put implements auth.Store.
func (s *MemoryStore) Put(_ context.Context, t *auth.TokenSet) error {
	if t == nil {
		return errNilTokenSet
	}
	s.mu.Lock()
	s.entries = t.Entries()
	s.mu.Unlock()
	return nil
}

// Clear implements auth.Store.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	s.entries = make(map[string]string)
	s.mu.Unlock()
	return nil
}

// Entries returns a copy of the raw persisted entries.
func (s *MemoryStore) Entries() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.entries)
}
