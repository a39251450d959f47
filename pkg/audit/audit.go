// Package audit records authentication and authorization decisions for
// operators. Events carry enough detail to investigate failures (timestamps,
// principal id when known, error kind); none of it is ever echoed to clients.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the authority.
const (
	ActionRegister     = "register"
	ActionLogin        = "login"
	ActionRefresh      = "refresh"
	ActionLogout       = "logout"
	ActionAuthenticate = "authenticate"
	ActionAuthorize    = "authorize"
	ActionSession      = "session"
)

// Event represents one auditable decision.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	PrincipalID string    `json:"principal_id,omitempty"`
	Resource    string    `json:"resource,omitempty"`
	Success     bool      `json:"success"`
	Kind        string    `json:"kind,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	RemoteAddr  string    `json:"remote_addr,omitempty"`
}

// NewEvent creates an event for the given action.
func NewEvent(action string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Action:    action,
	}
}

// WithPrincipal attaches the principal id, when known.
func (e *Event) WithPrincipal(principalID string) *Event {
	e.PrincipalID = principalID
	return e
}

// WithResource attaches the resource the action targeted.
func (e *Event) WithResource(resource string) *Event {
	e.Resource = resource
	return e
}

// WithRemote attaches the client address.
func (e *Event) WithRemote(remoteAddr string) *Event {
	e.RemoteAddr = remoteAddr
	return e
}

// Succeeded marks the event successful.
func (e *Event) Succeeded() *Event {
	e.Success = true
	return e
}

// Failed marks the event failed with an error kind and operator detail.
func (e *Event) Failed(kind, detail string) *Event {
	e.Success = false
	e.Kind = kind
	e.Detail = detail
	return e
}

// QueryFilter defines criteria for querying audit events.
type QueryFilter struct {
	PrincipalID string
	Action      string
	Success     *bool
	Since       *time.Time
	Until       *time.Time
	Limit       int
}

// Logger defines the interface for audit logging.
type Logger interface {
	// Log records an audit event.
	Log(ctx context.Context, event *Event) error

	// Query retrieves audit events matching the filter, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Event, error)

	// Close releases resources.
	Close() error
}
