package audit

import (
	"context"
	"errors"
	"log/slog"
)

// ErrQueryUnsupported is returned by loggers without a queryable backend.
var ErrQueryUnsupported = errors.New("audit: query not supported by this logger")

// SlogLogger writes audit events to a structured logger. It keeps no
// history; use the postgres store when events must be queryable.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a logger backed by the given slog.Logger. A nil
// argument uses slog.Default.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

// Log records an audit event.
func (l *SlogLogger) Log(ctx context.Context, event *Event) error {
	attrs := []any{
		"audit_id", event.ID,
		"action", event.Action,
		"success", event.Success,
	}
	if event.PrincipalID != "" {
		attrs = append(attrs, "principal_id", event.PrincipalID)
	}
	if event.Resource != "" {
		attrs = append(attrs, "resource", event.Resource)
	}
	if event.Kind != "" {
		attrs = append(attrs, "kind", event.Kind)
	}
	if event.Detail != "" {
		attrs = append(attrs, "detail", event.Detail)
	}
	if event.RemoteAddr != "" {
		attrs = append(attrs, "remote_addr", event.RemoteAddr)
	}

	if event.Success {
		l.logger.InfoContext(ctx, "audit", attrs...)
	} else {
		l.logger.WarnContext(ctx, "audit", attrs...)
	}
	return nil
}

// Query is not supported by the slog backend.
func (*SlogLogger) Query(context.Context, QueryFilter) ([]Event, error) {
	return nil, ErrQueryUnsupported
}

// Close releases resources.
func (*SlogLogger) Close() error { return nil }

// NopLogger discards all events.
type NopLogger struct{}

// Log discards the event.
func (*NopLogger) Log(context.Context, *Event) error { return nil }

// Query returns no events.
func (*NopLogger) Query(context.Context, QueryFilter) ([]Event, error) { return nil, nil }

// Close releases resources.
func (*NopLogger) Close() error { return nil }

// Verify interface compliance.
var (
	_ Logger = (*SlogLogger)(nil)
	_ Logger = (*NopLogger)(nil)
)
