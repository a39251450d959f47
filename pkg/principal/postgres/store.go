// Package postgres provides PostgreSQL storage for principals.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/tokengate/tokengate/pkg/principal"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// Store implements principal.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL principal store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists a new principal. Returns principal.ErrExists if the login
// is already taken.
func (s *Store) Create(ctx context.Context, p *principal.Principal) error {
	query := `
		INSERT INTO principals (id, login, display_name, secret_hash, roles, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.Login, p.DisplayName, p.SecretHash, pq.Array(p.Roles), p.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return principal.ErrExists
		}
		return fmt.Errorf("inserting principal: %w", err)
	}
	return nil
}

// GetByLogin retrieves a principal by login.
func (s *Store) GetByLogin(ctx context.Context, login string) (*principal.Principal, error) {
	query := `
		SELECT id, login, display_name, secret_hash, roles, created_at
		FROM principals
		WHERE login = $1
	`
	return s.scanPrincipal(s.db.QueryRowContext(ctx, query, login))
}

// GetByID retrieves a principal by id.
func (s *Store) GetByID(ctx context.Context, id string) (*principal.Principal, error) {
	query := `
		SELECT id, login, display_name, secret_hash, roles, created_at
		FROM principals
		WHERE id = $1
	`
	return s.scanPrincipal(s.db.QueryRowContext(ctx, query, id))
}

// UpdateSecretHash rotates the stored credential hash.
func (s *Store) UpdateSecretHash(ctx context.Context, id, secretHash string) error {
	query := `UPDATE principals SET secret_hash = $2 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, query, id, secretHash)
	if err != nil {
		return fmt.Errorf("updating secret hash: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if affected == 0 {
		return principal.ErrNotFound
	}
	return nil
}

// Close releases resources. The database handle is owned by the caller.
func (*Store) Close() error { return nil }

// scanPrincipal scans a single row into a Principal.
func (*Store) scanPrincipal(row *sql.Row) (*principal.Principal, error) {
	var p principal.Principal
	var roles pq.StringArray

	err := row.Scan(&p.ID, &p.Login, &p.DisplayName, &p.SecretHash, &roles, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, principal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning principal: %w", err)
	}
	p.Roles = roles
	return &p, nil
}

// Verify interface compliance.
var _ principal.Store = (*Store)(nil)
