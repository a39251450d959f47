// Package postgres provides PostgreSQL storage for session state.
//
// Per-principal serialization relies on the row lock taken by
// SELECT ... FOR UPDATE inside the Update transaction: two updates for the
// same principal queue on the row, updates for different principals touch
// different rows and proceed in parallel.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tokengate/tokengate/pkg/session"
)

// defaultQueryTimeout bounds every store call so a stalled backend surfaces
// as ErrStoreUnavailable instead of hanging the request.
const defaultQueryTimeout = 5 * time.Second

// Store implements session.Store using PostgreSQL.
type Store struct {
	db           *sql.DB
	queryTimeout time.Duration
	ttl          time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// Config configures the PostgreSQL session store.
type Config struct {
	// QueryTimeout bounds individual store calls. Zero means the default.
	QueryTimeout time.Duration

	// TTL is the idle lifetime used by the background sweep.
	TTL time.Duration
}

// New creates a new PostgreSQL session store.
func New(db *sql.DB, cfg Config) *Store {
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	return &Store{
		db:           db,
		queryTimeout: cfg.QueryTimeout,
		ttl:          cfg.TTL,
	}
}

// Get returns the current state snapshot.
func (s *Store) Get(ctx context.Context, principalID string) (json.RawMessage, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `SELECT state FROM session_entries WHERE principal_id = $1`
	var state json.RawMessage
	err := s.db.QueryRowContext(ctx, query, principalID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, unavailable("querying session entry", err)
	}
	return state, true, nil
}

// Update atomically applies fn to the principal's state inside a
// transaction that locks the principal's row.
func (s *Store) Update(ctx context.Context, principalID string, fn session.Mutator) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("beginning transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current json.RawMessage
	row := tx.QueryRowContext(ctx,
		`SELECT state FROM session_entries WHERE principal_id = $1 FOR UPDATE`, principalID)
	if err := row.Scan(&current); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, unavailable("locking session entry", err)
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO session_entries (principal_id, state, created_at, last_active_at)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (principal_id)
		DO UPDATE SET state = EXCLUDED.state, last_active_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, query, principalID, []byte(next)); err != nil {
		return nil, unavailable("writing session entry", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("committing session entry", err)
	}
	return next, nil
}

// Clear removes the entry.
func (s *Store) Clear(ctx context.Context, principalID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `DELETE FROM session_entries WHERE principal_id = $1`
	if _, err := s.db.ExecContext(ctx, query, principalID); err != nil {
		return unavailable("deleting session entry", err)
	}
	return nil
}

// ExpireOlderThan removes entries untouched for longer than ttl. Rows locked
// by an in-flight Update are not removed until that mutation commits, at
// which point their last_active_at is fresh again.
func (s *Store) ExpireOlderThan(ctx context.Context, ttl time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	query := `DELETE FROM session_entries WHERE last_active_at < NOW() - $1::interval`
	res, err := s.db.ExecContext(ctx, query, fmt.Sprintf("%d seconds", int(ttl.Seconds())))
	if err != nil {
		return 0, unavailable("expiring session entries", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("reading rows affected", err)
	}
	return int(affected), nil
}

// StartSweepRoutine starts a background goroutine that periodically expires
// idle entries using the store's ttl. The goroutine is stopped when Close
// is called.
func (s *Store) StartSweepRoutine(interval time.Duration) {
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
				if _, err := s.ExpireOlderThan(ctx, s.ttl); err != nil {
					slog.Warn("session sweep failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the sweep goroutine and waits for it to exit.
// It is safe to call Close even if StartSweepRoutine was never called.
func (s *Store) Close() error {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	return nil
}

// unavailable wraps a backend failure in the retryable taxonomy error.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", session.ErrStoreUnavailable, op, err)
}

// Verify interface compliance.
var _ session.Store = (*Store)(nil)
