// Package postgres provides PostgreSQL storage for audit events.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/tokengate/tokengate/pkg/audit"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 10000
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// auditColumns lists columns returned by audit SELECT queries.
var auditColumns = []string{
	"id", "timestamp", "action", "principal_id", "resource",
	"success", "kind", "detail", "remote_addr",
}

// Store implements audit.Logger using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event *audit.Event) error {
	query := `
		INSERT INTO audit_events
		(id, timestamp, action, principal_id, resource, success, kind, detail, remote_addr)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.Timestamp,
		event.Action,
		event.PrincipalID,
		event.Resource,
		event.Success,
		event.Kind,
		event.Detail,
		event.RemoteAddr,
	)
	if err != nil {
		return fmt.Errorf("inserting audit event: %w", err)
	}
	return nil
}

// Query retrieves audit events matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	qb := psq.Select(auditColumns...).
		From("audit_events").
		OrderBy("timestamp DESC").
		Limit(uint64(limit))
	qb = applyFilter(qb, filter)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building audit query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []audit.Event
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.Action, &e.PrincipalID, &e.Resource,
			&e.Success, &e.Kind, &e.Detail, &e.RemoteAddr,
		); err != nil {
			return nil, fmt.Errorf("scanning audit event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}
	return events, nil
}

// Close releases resources. The database handle is owned by the caller.
func (*Store) Close() error { return nil }

// applyFilter adds filter conditions to a SELECT builder.
func applyFilter(qb sq.SelectBuilder, filter audit.QueryFilter) sq.SelectBuilder {
	if filter.PrincipalID != "" {
		qb = qb.Where(sq.Eq{"principal_id": filter.PrincipalID})
	}
	if filter.Action != "" {
		qb = qb.Where(sq.Eq{"action": filter.Action})
	}
	if filter.Success != nil {
		qb = qb.Where(sq.Eq{"success": *filter.Success})
	}
	if filter.Since != nil {
		qb = qb.Where(sq.GtOrEq{"timestamp": *filter.Since})
	}
	if filter.Until != nil {
		qb = qb.Where(sq.LtOrEq{"timestamp": *filter.Until})
	}
	return qb
}

// Verify interface compliance.
var _ audit.Logger = (*Store)(nil)
