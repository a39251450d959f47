// Package session provides per-principal mutable state storage (the cart
// pattern). Each principal owns at most one entry; mutations to the same
// entry are serialized, while entries of different principals never block
// each other.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrStoreUnavailable indicates the backing store could not serve the call
// (backend down or call timed out). This is the only error class callers
// may retry with backoff; a mutation that fails with it was never applied
// silently.
var ErrStoreUnavailable = errors.New("session: store unavailable")

// Mutator transforms the current state into the next state. It receives nil
// when no entry exists yet.
type Mutator func(current json.RawMessage) (json.RawMessage, error)

// Store defines the interface for session state persistence.
type Store interface {
	// Get returns the current state snapshot. A missing entry is not an
	// error: found is false and state is nil.
	Get(ctx context.Context, principalID string) (state json.RawMessage, found bool, err error)

	// Update atomically reads the current state (or nil), applies the
	// mutator, and writes the result back, returning the new snapshot.
	// Concurrent calls for the same principal are serialized; a committed
	// update is the baseline for the next read even if the request that
	// issued it was aborted.
	Update(ctx context.Context, principalID string, fn Mutator) (json.RawMessage, error)

	// Clear removes the entry. Clearing a missing entry is a no-op.
	Clear(ctx context.Context, principalID string) error

	// ExpireOlderThan removes entries untouched for longer than ttl and
	// returns how many were removed. It never removes an entry mid-mutation.
	ExpireOlderThan(ctx context.Context, ttl time.Duration) (int, error)

	// Close stops background routines and releases resources.
	Close() error
}
