// Package authn guards HTTP requests: it extracts the bearer credential,
// verifies it, and attaches the resolved identity to the request context.
package authn

import (
	"context"

	"github.com/tokengate/tokengate/pkg/token"
)

// contextKey is a private type for context keys.
type contextKey int

const identityKey contextKey = iota

// WithIdentity adds a verified identity to the context.
func WithIdentity(ctx context.Context, ident *token.Identity) context.Context {
	return context.WithValue(ctx, identityKey, ident)
}

// IdentityFrom retrieves the verified identity from the context, or nil if
// the request never passed the guard.
func IdentityFrom(ctx context.Context) *token.Identity {
	if ident, ok := ctx.Value(identityKey).(*token.Identity); ok {
		return ident
	}
	return nil
}
