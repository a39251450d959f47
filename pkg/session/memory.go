package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// entry is one principal's state plus the mutex that serializes its
// mutations. The store map mutex only guards map structure; steady-state
// traffic for different principals contends only on its read side.
type entry struct {
	mu           sync.Mutex
	state        json.RawMessage
	createdAt    time.Time
	lastActiveAt time.Time
}

// MemoryStore implements Store using an in-memory map with per-key locking.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMemoryStore creates a new in-memory session store. ttl is the idle
// lifetime used by the background sweep.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		ttl:     ttl,
	}
}

// Get returns the current state snapshot.
func (s *MemoryStore) Get(_ context.Context, principalID string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[principalID]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == nil {
		// Entry allocated but no mutation ever committed.
		return nil, false, nil
	}
	return append(json.RawMessage(nil), e.state...), true, nil
}

// Update atomically applies fn to the principal's state, creating the entry
// lazily on first write.
func (s *MemoryStore) Update(_ context.Context, principalID string, fn Mutator) (json.RawMessage, error) {
	e := s.lockEntry(principalID)
	defer e.mu.Unlock()

	var current json.RawMessage
	if e.state != nil {
		current = append(json.RawMessage(nil), e.state...)
	}
	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	e.state = append(json.RawMessage(nil), next...)
	e.lastActiveAt = time.Now()
	return append(json.RawMessage(nil), next...), nil
}

// Clear removes the entry.
func (s *MemoryStore) Clear(_ context.Context, principalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, principalID)
	return nil
}

// ExpireOlderThan removes entries untouched for longer than ttl. Candidates
// are collected from a snapshot under the read lock; each is then re-checked
// under its own lock so an entry touched (or locked by a mutation in flight)
// since the snapshot survives the sweep.
func (s *MemoryStore) ExpireOlderThan(_ context.Context, ttl time.Duration) (int, error) {
	cutoff := time.Now().Add(-ttl)

	s.mu.RLock()
	candidates := make([]string, 0, len(s.entries))
	for id := range s.entries {
		candidates = append(candidates, id)
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range candidates {
		s.mu.Lock()
		e, ok := s.entries[id]
		if !ok {
			s.mu.Unlock()
			continue
		}
		if !e.mu.TryLock() {
			// Mutation in flight; it will refresh lastActiveAt anyway.
			s.mu.Unlock()
			continue
		}
		if e.lastActiveAt.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
		e.mu.Unlock()
		s.mu.Unlock()
	}
	return removed, nil
}

// StartSweepRoutine starts a background goroutine that periodically expires
// idle entries using the store's ttl. The goroutine is stopped when Close
// is called.
func (s *MemoryStore) StartSweepRoutine(interval time.Duration) {
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
				_, _ = s.ExpireOlderThan(ctx, s.ttl)
			}
		}
	}()
}

// Close stops the sweep goroutine and waits for it to exit.
// It is safe to call Close even if StartSweepRoutine was never called.
func (s *MemoryStore) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// lockEntry returns the principal's live entry with its mutex held. The
// sweep can remove an entry between entryFor and the lock acquisition; a
// commit to such an orphan would vanish from the map, so the entry is
// re-checked against the map once locked and the lookup retried if it lost.
func (s *MemoryStore) lockEntry(principalID string) *entry {
	for {
		e := s.entryFor(principalID)
		e.mu.Lock()

		s.mu.RLock()
		live := s.entries[principalID] == e
		s.mu.RUnlock()
		if live {
			return e
		}
		e.mu.Unlock()
	}
}

// entryFor returns the principal's entry, creating it if absent.
func (s *MemoryStore) entryFor(principalID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[principalID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[principalID]; ok {
		return e
	}
	now := time.Now()
	e = &entry{createdAt: now, lastActiveAt: now}
	s.entries[principalID] = e
	return e
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
