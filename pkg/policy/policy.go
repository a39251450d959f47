// Package policy decides whether a resolved principal may perform an
// operation on a resource. Denial here is "forbidden" (the caller is known
// but not allowed), never "unauthenticated".
package policy

import (
	"context"
	"slices"

	"github.com/tokengate/tokengate/pkg/token"
)

// Gate authorizes operations on per-principal resources.
type Gate interface {
	// Authorize reports whether the identity may perform the operation on
	// the resource owned by resourceOwnerID. reason is non-empty only on
	// denial and is intended for logs, not client responses.
	Authorize(ctx context.Context, ident *token.Identity, operation, resourceOwnerID string) (allowed bool, reason string)
}

// OwnerGate permits an operation iff the principal owns the resource or
// holds one of the elevated roles granted out-of-band.
type OwnerGate struct {
	elevatedRoles []string
}

// NewOwnerGate creates a gate with the given elevated roles. With no roles,
// only resource owners pass.
func NewOwnerGate(elevatedRoles ...string) *OwnerGate {
	return &OwnerGate{elevatedRoles: elevatedRoles}
}

// Authorize implements Gate.
func (g *OwnerGate) Authorize(_ context.Context, ident *token.Identity, operation, resourceOwnerID string) (bool, string) {
	if ident == nil {
		return false, "no identity"
	}
	if ident.PrincipalID == resourceOwnerID {
		return true, ""
	}
	for _, role := range ident.Roles {
		if slices.Contains(g.elevatedRoles, role) {
			return true, ""
		}
	}
	return false, "operation " + operation + " on resource of another principal"
}

// AllowAllGate authorizes every operation. For tests and single-tenant use.
type AllowAllGate struct{}

// Authorize implements Gate.
func (*AllowAllGate) Authorize(context.Context, *token.Identity, string, string) (bool, string) {
	return true, ""
}

// Verify interface compliance.
var (
	_ Gate = (*OwnerGate)(nil)
	_ Gate = (*AllowAllGate)(nil)
)
