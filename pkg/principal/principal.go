// Package principal manages identity records. A principal is created at
// registration, read at login, and mutated only for credential rotation.
package principal

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no principal matches the lookup.
	ErrNotFound = errors.New("principal: not found")

	// ErrExists indicates a principal with the same login already exists.
	ErrExists = errors.New("principal: already exists")
)

// Principal is an identity record. SecretHash is the bcrypt hash of the
// registration secret; the secret itself is never stored.
type Principal struct {
	ID          string    `json:"id"`
	Login       string    `json:"login"`
	DisplayName string    `json:"display_name,omitempty"`
	SecretHash  string    `json:"-"`
	Roles       []string  `json:"roles,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store defines the interface for principal persistence.
type Store interface {
	// Create persists a new principal. Returns ErrExists if the login is taken.
	Create(ctx context.Context, p *Principal) error

	// GetByLogin retrieves a principal by login. Returns ErrNotFound if absent.
	GetByLogin(ctx context.Context, login string) (*Principal, error)

	// GetByID retrieves a principal by id. Returns ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*Principal, error)

	// UpdateSecretHash rotates the stored credential hash.
	UpdateSecretHash(ctx context.Context, id, secretHash string) error

	// Close releases resources.
	Close() error
}
