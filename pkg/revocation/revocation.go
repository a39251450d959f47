// Package revocation tracks tokens invalidated before their natural expiry.
// A revoked token id stays in the set until the token would have expired
// anyway, after which the periodic cleanup prunes it.
package revocation

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable indicates the backing store could not answer (backend
// down or call timed out). It is distinct from the token taxonomy: a
// verification that fails with it says nothing about the token itself, and
// callers may retry instead of forcing re-authentication.
var ErrStoreUnavailable = errors.New("revocation: store unavailable")

// Store defines the interface for revocation persistence.
type Store interface {
	// Revoke marks a token id as revoked until expiresAt. Revoking an
	// already-revoked id is a no-op.
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error

	// IsRevoked reports whether the token id is currently revoked.
	IsRevoked(ctx context.Context, tokenID string) (bool, error)

	// Cleanup removes records whose natural expiry has passed.
	Cleanup(ctx context.Context) error

	// Close stops background routines and releases resources.
	Close() error
}
