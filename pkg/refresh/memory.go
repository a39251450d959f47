package refresh

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-memory map.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]*Token

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryStore creates a new in-memory refresh token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tokens: make(map[string]*Token),
	}
}

// Save persists a new refresh token.
func (s *MemoryStore) Save(_ context.Context, t *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.tokens[t.Token] = &cp
	return nil
}

// Get retrieves a refresh token. Returns ErrNotFound if absent or expired.
func (s *MemoryStore) Get(_ context.Context, token string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tokens[token]
	if !ok || t.IsExpired() {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// Consume atomically retrieves and deletes a refresh token. The lookup and
// removal happen under one critical section so a token is redeemable
// exactly once.
func (s *MemoryStore) Consume(_ context.Context, token string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tokens[token]
	if !ok || t.IsExpired() {
		return nil, ErrNotFound
	}
	delete(s.tokens, token)
	cp := *t
	return &cp, nil
}

// Delete removes a refresh token.
func (s *MemoryStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, token)
	return nil
}

// DeleteForPrincipal removes all of a principal's refresh tokens.
func (s *MemoryStore) DeleteForPrincipal(_ context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for value, t := range s.tokens {
		if t.PrincipalID == principalID {
			delete(s.tokens, value)
		}
	}
	return nil
}

// Cleanup removes expired tokens.
func (s *MemoryStore) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for value, t := range s.tokens {
		if t.IsExpired() {
			delete(s.tokens, value)
		}
	}
	return nil
}

// StartCleanupRoutine starts a background goroutine that periodically prunes
// expired tokens. The goroutine is stopped when Close is called.
func (s *MemoryStore) StartCleanupRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = s.Cleanup(ctx)
			}
		}
	}()
}

// Close stops the cleanup goroutine and waits for it to exit.
// It is safe to call Close even if StartCleanupRoutine was never called.
func (s *MemoryStore) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
