// Package refresh manages opaque refresh tokens. Unlike access tokens these
// are server-held records: presenting one proves nothing by itself, the
// store lookup does.
package refresh

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates no live refresh token matches the lookup.
var ErrNotFound = errors.New("refresh: token not found")

// tokenBytes is the entropy of a generated refresh token.
const tokenBytes = 32

// Token is a server-held refresh token record.
type Token struct {
	Token       string    `json:"token"`
	PrincipalID string    `json:"principal_id"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsExpired checks if the refresh token has expired.
func (t *Token) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// Store defines the interface for refresh token persistence.
type Store interface {
	// Save persists a new refresh token.
	Save(ctx context.Context, t *Token) error

	// Get retrieves a refresh token. Returns ErrNotFound if absent or expired.
	Get(ctx context.Context, token string) (*Token, error)

	// Consume atomically retrieves and deletes a refresh token. Returns
	// ErrNotFound if absent, expired, or already consumed; of any number
	// of concurrent calls presenting the same token, exactly one wins.
	Consume(ctx context.Context, token string) (*Token, error)

	// Delete removes a refresh token. Deleting a missing token is a no-op.
	Delete(ctx context.Context, token string) error

	// DeleteForPrincipal removes all of a principal's refresh tokens
	// (logout-everywhere).
	DeleteForPrincipal(ctx context.Context, principalID string) error

	// Cleanup removes expired tokens.
	Cleanup(ctx context.Context) error

	// Close stops background routines and releases resources.
	Close() error
}

// Generate returns a new random refresh token value.
func Generate() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
