// Package token issues and verifies signed, time-bound bearer tokens.
// Tokens are stateless JWTs (HS256): the server keeps no copy after
// issuance, only an optional revocation record for early invalidation.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tokengate/tokengate/pkg/revocation"
)

// Verification failure kinds. All of them collapse to a single generic
// unauthenticated response at the HTTP boundary; the distinction exists for
// operator logs and tests only.
var (
	// ErrKeyUnavailable indicates the signing key is missing or unusable.
	ErrKeyUnavailable = errors.New("token: signing key unavailable")

	// ErrMalformed indicates the token cannot be parsed.
	ErrMalformed = errors.New("token: malformed")

	// ErrBadSignature indicates the signature does not verify.
	ErrBadSignature = errors.New("token: bad signature")

	// ErrExpired indicates the token's expiry has passed.
	ErrExpired = errors.New("token: expired")

	// ErrRevoked indicates the token was invalidated before its natural expiry.
	ErrRevoked = errors.New("token: revoked")
)

// minKeyBytes is the minimum accepted HMAC key length.
const minKeyBytes = 32

// Claims is the JWT payload: subject carries the principal id, ID the
// unique token id (jti) used for revocation, plus the roles resolved at
// issue time.
type Claims struct {
	jwt.RegisteredClaims
	Roles []string `json:"roles,omitempty"`
}

// Identity is the result of successful verification.
type Identity struct {
	PrincipalID string
	TokenID     string
	Roles       []string
	ExpiresAt   time.Time
}

// Verifier resolves a presented bearer token to an Identity.
type Verifier interface {
	Verify(ctx context.Context, tokenString string) (*Identity, error)
}

// Issuer mints and verifies HS256 tokens. Verification is pure computation
// apart from the revocation lookup.
type Issuer struct {
	key         []byte
	revocations revocation.Store
}

// NewIssuer creates an Issuer with the given signing key and revocation
// store. A nil store disables revocation checks (pure stateless tokens).
func NewIssuer(key []byte, revocations revocation.Store) (*Issuer, error) {
	if len(key) < minKeyBytes {
		return nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrKeyUnavailable, minKeyBytes, len(key))
	}
	return &Issuer{key: key, revocations: revocations}, nil
}

// Issue mints a token binding the principal id and roles to an absolute
// expiry of now + ttl.
func (i *Issuer) Issue(principalID string, roles []string, ttl time.Duration) (string, *Claims, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principalID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Roles: roles,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", nil, fmt.Errorf("signing token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks the presented token and returns the identity it carries.
// The signature check precedes the expiry check, which precedes any use of
// the payload; no claimed field is trusted until the signature verifies.
func (i *Issuer) Verify(ctx context.Context, tokenString string) (*Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, i.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, mapParseError(err)
	}

	if i.revocations != nil {
		revoked, err := i.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("checking revocation: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	return &Identity{
		PrincipalID: claims.Subject,
		TokenID:     claims.ID,
		Roles:       claims.Roles,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// Revoke invalidates the presented token before its natural expiry.
// The token must still verify cryptographically; revoking garbage is
// rejected rather than recorded. Revoking an already-revoked token
// succeeds (idempotent).
func (i *Issuer) Revoke(ctx context.Context, tokenString string) error {
	if i.revocations == nil {
		return errors.New("token: revocation store not configured")
	}

	ident, err := i.Verify(ctx, tokenString)
	if errors.Is(err, ErrRevoked) {
		return nil
	}
	if err != nil {
		return err
	}
	return i.revocations.Revoke(ctx, ident.TokenID, ident.ExpiresAt)
}

// keyFunc rejects unexpected signing methods before releasing the key.
func (i *Issuer) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
	}
	return i.key, nil
}

// mapParseError converts jwt/v5 errors into the package taxonomy. Order
// matters: a forged token must surface as a signature failure even when its
// claimed expiry has also passed.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

// Verify interface compliance.
var _ Verifier = (*Issuer)(nil)
