// Package postgres provides PostgreSQL storage for token revocations.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/tokengate/tokengate/pkg/revocation"
)

// defaultQueryTimeout bounds individual store calls so a stalled backend
// cannot hang token verification.
const defaultQueryTimeout = 5 * time.Second

// Store implements revocation.Store using PostgreSQL.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
	cancel       context.CancelFunc
	done         chan struct{}
}

// New creates a new PostgreSQL revocation store.
func New(db *sql.DB) *Store {
	return &Store{db: db, queryTimeout: defaultQueryTimeout}
}

// Revoke marks a token id as revoked until expiresAt. Idempotent via
// ON CONFLICT DO NOTHING.
func (s *Store) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		INSERT INTO revoked_tokens (token_id, expires_at, revoked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (token_id) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, tokenID, expiresAt)
	if err != nil {
		return unavailable("inserting revocation", err)
	}
	return nil
}

// IsRevoked reports whether the token id is currently revoked.
func (s *Store) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM revoked_tokens
			WHERE token_id = $1 AND expires_at > NOW()
		)
	`
	var revoked bool
	if err := s.db.QueryRowContext(ctx, query, tokenID).Scan(&revoked); err != nil {
		return false, unavailable("querying revocation", err)
	}
	return revoked, nil
}

// Cleanup removes records whose natural expiry has passed.
func (s *Store) Cleanup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `DELETE FROM revoked_tokens WHERE expires_at <= NOW()`
	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return unavailable("cleaning up revocations", err)
	}
	return nil
}

// unavailable classifies a backend failure as revocation.ErrStoreUnavailable
// while keeping the driver error in the chain for logs.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, revocation.ErrStoreUnavailable, err)
}

// StartCleanupRoutine starts a background goroutine that periodically prunes
// expired records. The goroutine is stopped when Close is called.
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
					slog.Warn("revocation cleanup failed", "error", err)
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
var _ revocation.Store = (*Store)(nil)
