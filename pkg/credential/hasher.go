// Package credential provides one-way password hashing and verification.
// Secrets are never stored or logged; only bcrypt hashes (which embed their
// own per-hash salt) are persisted.
package credential

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrHashing indicates the hash could not be computed. This is an
// environment problem (entropy source or cost failure), not a bad input.
var ErrHashing = errors.New("credential: hashing failed")

// maxSecretLength is bcrypt's input limit; longer secrets are rejected at
// registration rather than silently truncated.
const maxSecretLength = 72

// Hasher hashes and verifies secrets.
type Hasher interface {
	// Hash returns a salted one-way hash of the secret.
	Hash(secret string) (string, error)

	// Verify reports whether secret matches hash. Comparison is
	// constant-time; a mismatch is a false return, never an error.
	Verify(secret, hash string) bool
}

// BcryptHasher implements Hasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher with the given cost. A cost outside
// bcrypt's valid range falls back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns a bcrypt hash of the secret with a fresh random salt.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	if len(secret) > maxSecretLength {
		return "", fmt.Errorf("%w: secret exceeds %d bytes", ErrHashing, maxSecretLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(hash), nil
}

// Verify recomputes and compares in constant time.
func (*BcryptHasher) Verify(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// Verify interface compliance.
var _ Hasher = (*BcryptHasher)(nil)
