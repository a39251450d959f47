package principal

import (
	"context"
	"sync"
)

// MemoryStore implements Store using in-memory maps.
// It is thread-safe and suitable for development/testing.
// For production, use the postgres store.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Principal
	byLogin map[string]*Principal
}

// NewMemoryStore creates a new in-memory principal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Principal),
		byLogin: make(map[string]*Principal),
	}
}

// Create persists a new principal. Returns ErrExists if the login is taken.
func (s *MemoryStore) Create(_ context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byLogin[p.Login]; exists {
		return ErrExists
	}
	stored := clone(p)
	s.byID[p.ID] = stored
	s.byLogin[p.Login] = stored
	return nil
}

// GetByLogin retrieves a principal by login.
func (s *MemoryStore) GetByLogin(_ context.Context, login string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byLogin[login]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p), nil
}

// GetByID retrieves a principal by id.
func (s *MemoryStore) GetByID(_ context.Context, id string) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(p), nil
}

// UpdateSecretHash rotates the stored credential hash.
func (s *MemoryStore) UpdateSecretHash(_ context.Context, id, secretHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	p.SecretHash = secretHash
	return nil
}

// Close releases resources.
func (*MemoryStore) Close() error { return nil }

// clone copies a principal so callers cannot mutate stored state.
func clone(p *Principal) *Principal {
	cp := *p
	if p.Roles != nil {
		cp.Roles = append([]string(nil), p.Roles...)
	}
	return &cp
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
