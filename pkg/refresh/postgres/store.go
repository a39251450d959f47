// Package postgres provides PostgreSQL storage for refresh tokens.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tokengate/tokengate/pkg/refresh"
)

// defaultQueryTimeout bounds individual store calls so a stalled backend
// cannot hang a login or refresh request.
const defaultQueryTimeout = 5 * time.Second

// Store implements refresh.Store using PostgreSQL.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
	cancel       context.CancelFunc
	done         chan struct{}
}

// New creates a new PostgreSQL refresh token store.
func New(db *sql.DB) *Store {
	return &Store{db: db, queryTimeout: defaultQueryTimeout}
}

// Save persists a new refresh token.
func (s *Store) Save(ctx context.Context, t *refresh.Token) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		INSERT INTO refresh_tokens (token, principal_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(ctx, query, t.Token, t.PrincipalID, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting refresh token: %w", err)
	}
	return nil
}

// Get retrieves a refresh token. Returns refresh.ErrNotFound if absent
// or expired.
func (s *Store) Get(ctx context.Context, token string) (*refresh.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		SELECT token, principal_id, expires_at, created_at
		FROM refresh_tokens
		WHERE token = $1 AND expires_at > NOW()
	`
	var t refresh.Token
	err := s.db.QueryRowContext(ctx, query, token).
		Scan(&t.Token, &t.PrincipalID, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, refresh.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying refresh token: %w", err)
	}
	return &t, nil
}

// Consume atomically retrieves and deletes a refresh token. The single
// DELETE ... RETURNING statement makes the row removal the arbiter: of any
// number of concurrent redemptions, exactly one gets the row back.
func (s *Store) Consume(ctx context.Context, token string) (*refresh.Token, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		DELETE FROM refresh_tokens
		WHERE token = $1 AND expires_at > NOW()
		RETURNING token, principal_id, expires_at, created_at
	`
	var t refresh.Token
	err := s.db.QueryRowContext(ctx, query, token).
		Scan(&t.Token, &t.PrincipalID, &t.ExpiresAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, refresh.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("consuming refresh token: %w", err)
	}
	return &t, nil
}

// Delete removes a refresh token.
func (s *Store) Delete(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `DELETE FROM refresh_tokens WHERE token = $1`
	if _, err := s.db.ExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("deleting refresh token: %w", err)
	}
	return nil
}

// DeleteForPrincipal removes all of a principal's refresh tokens.
func (s *Store) DeleteForPrincipal(ctx context.Context, principalID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `DELETE FROM refresh_tokens WHERE principal_id = $1`
	if _, err := s.db.ExecContext(ctx, query, principalID); err != nil {
		return fmt.Errorf("deleting principal refresh tokens: %w", err)
	}
	return nil
}

// Cleanup removes expired tokens.
func (s *Store) Cleanup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("cleaning up refresh tokens: %w", err)
	}
	return nil
}

// StartCleanupRoutine starts a background goroutine that periodically prunes
// expired tokens. The goroutine is stopped when Close is called.
func (s *Store) StartCleanupRoutine(interval time.Duration) {
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
				if err := s.Cleanup(ctx); err != nil {
					slog.Warn("refresh token cleanup failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the cleanup goroutine and waits for it to exit.
// It is safe to call Close even if StartCleanupRoutine was never called.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// Verify interface compliance.
var _ refresh.Store = (*Store)(nil)
