// Package authority orchestrates the credential hasher, token issuer,
// principal store and refresh token store into the login/logout lifecycle.
package authority

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tokengate/tokengate/pkg/audit"
	"github.com/tokengate/tokengate/pkg/credential"
	"github.com/tokengate/tokengate/pkg/principal"
	"github.com/tokengate/tokengate/pkg/refresh"
	"github.com/tokengate/tokengate/pkg/revocation"
	"github.com/tokengate/tokengate/pkg/token"
)

var (
	// ErrInvalidCredentials indicates login or refresh failed. It carries no
	// detail about why; the distinction lives in audit events only.
	ErrInvalidCredentials = errors.New("authority: invalid credentials")

	// ErrInvalidInput indicates a malformed registration request.
	ErrInvalidInput = errors.New("authority: invalid input")
)

// dummyHash is compared against when a login names an unknown principal, so
// a miss costs the same bcrypt work as a mismatch.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	AccessToken  string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Config configures the Authority.
type Config struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Authority issues, refreshes and revokes credentials for principals.
type Authority struct {
	principals principal.Store
	hasher     credential.Hasher
	issuer     *token.Issuer
	refreshes  refresh.Store
	auditor    audit.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// New creates an Authority.
func New(
	principals principal.Store,
	hasher credential.Hasher,
	issuer *token.Issuer,
	refreshes refresh.Store,
	auditor audit.Logger,
	cfg Config,
) *Authority {
	if auditor == nil {
		auditor = &audit.NopLogger{}
	}
	return &Authority{
		principals: principals,
		hasher:     hasher,
		issuer:     issuer,
		refreshes:  refreshes,
		auditor:    auditor,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
	}
}

// Register creates a new principal. The secret is hashed and discarded.
func (a *Authority) Register(ctx context.Context, login, secret, displayName string) (*principal.Principal, error) {
	if login == "" || secret == "" {
		return nil, fmt.Errorf("%w: login and secret are required", ErrInvalidInput)
	}

	hash, err := a.hasher.Hash(secret)
	if err != nil {
		a.audit(ctx, audit.NewEvent(audit.ActionRegister).Failed("hashing", err.Error()))
		return nil, err
	}

	p := &principal.Principal{
		ID:          uuid.NewString(),
		Login:       login,
		DisplayName: displayName,
		SecretHash:  hash,
		CreatedAt:   time.Now(),
	}
	if err := a.principals.Create(ctx, p); err != nil {
		a.audit(ctx, audit.NewEvent(audit.ActionRegister).Failed("store", err.Error()))
		return nil, err
	}

	a.audit(ctx, audit.NewEvent(audit.ActionRegister).WithPrincipal(p.ID).Succeeded())
	slog.InfoContext(ctx, "principal registered", "principal_id", p.ID)
	return p, nil
}

// Login verifies the secret against the stored hash and mints a token pair.
// Unknown logins and wrong secrets are indistinguishable to the caller.
func (a *Authority) Login(ctx context.Context, login, secret string) (*TokenPair, error) {
	p, err := a.principals.GetByLogin(ctx, login)
	if errors.Is(err, principal.ErrNotFound) {
		// Burn the same hash work as a real verification.
		a.hasher.Verify(secret, dummyHash)
		a.audit(ctx, audit.NewEvent(audit.ActionLogin).Failed("unknown_login", login))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		a.audit(ctx, audit.NewEvent(audit.ActionLogin).Failed("store", err.Error()))
		return nil, fmt.Errorf("loading principal: %w", err)
	}

	if !a.hasher.Verify(secret, p.SecretHash) {
		a.audit(ctx, audit.NewEvent(audit.ActionLogin).WithPrincipal(p.ID).Failed("bad_secret", ""))
		return nil, ErrInvalidCredentials
	}

	pair, err := a.mintPair(ctx, p)
	if err != nil {
		a.audit(ctx, audit.NewEvent(audit.ActionLogin).WithPrincipal(p.ID).Failed("mint", err.Error()))
		return nil, err
	}

	a.audit(ctx, audit.NewEvent(audit.ActionLogin).WithPrincipal(p.ID).Succeeded())
	return pair, nil
}

// Refresh rotates a refresh token: the presented token is consumed and a
// fresh pair is minted. A token that was already rotated (or never issued)
// fails as invalid credentials.
func (a *Authority) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	// Consume is get-and-delete in one step: if two requests race on the
	// same token, exactly one gets the record and the other sees ErrNotFound.
	rec, err := a.refreshes.Consume(ctx, refreshToken)
	if errors.Is(err, refresh.ErrNotFound) {
		a.audit(ctx, audit.NewEvent(audit.ActionRefresh).Failed("unknown_token", ""))
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("consuming refresh token: %w", err)
	}

	// The token is already burned; a principal lookup failure here fails
	// closed rather than leaving the token redeemable.
	p, err := a.principals.GetByID(ctx, rec.PrincipalID)
	if err != nil {
		a.audit(ctx, audit.NewEvent(audit.ActionRefresh).WithPrincipal(rec.PrincipalID).Failed("store", err.Error()))
		return nil, ErrInvalidCredentials
	}

	pair, err := a.mintPair(ctx, p)
	if err != nil {
		return nil, err
	}

	a.audit(ctx, audit.NewEvent(audit.ActionRefresh).WithPrincipal(p.ID).Succeeded())
	return pair, nil
}

// Logout revokes the presented access token and deletes the principal's
// refresh tokens. The session state is left alone; carts are cleared only
// by an explicit clear.
func (a *Authority) Logout(ctx context.Context, accessToken string) error {
	ident, err := a.issuer.Verify(ctx, accessToken)
	if errors.Is(err, revocation.ErrStoreUnavailable) {
		return fmt.Errorf("verifying access token: %w", err)
	}
	if err != nil {
		a.audit(ctx, audit.NewEvent(audit.ActionLogout).Failed("verify", err.Error()))
		return ErrInvalidCredentials
	}

	if err := a.issuer.Revoke(ctx, accessToken); err != nil {
		return fmt.Errorf("revoking access token: %w", err)
	}
	if err := a.refreshes.DeleteForPrincipal(ctx, ident.PrincipalID); err != nil {
		return fmt.Errorf("deleting refresh tokens: %w", err)
	}

	a.audit(ctx, audit.NewEvent(audit.ActionLogout).WithPrincipal(ident.PrincipalID).Succeeded())
	return nil
}

// RotateSecret replaces a principal's credential after verifying the
// current one.
func (a *Authority) RotateSecret(ctx context.Context, principalID, currentSecret, newSecret string) error {
	if newSecret == "" {
		return fmt.Errorf("%w: new secret is required", ErrInvalidInput)
	}

	p, err := a.principals.GetByID(ctx, principalID)
	if err != nil {
		return ErrInvalidCredentials
	}
	if !a.hasher.Verify(currentSecret, p.SecretHash) {
		a.audit(ctx, audit.NewEvent(audit.ActionLogin).WithPrincipal(p.ID).Failed("bad_secret", "rotation"))
		return ErrInvalidCredentials
	}

	hash, err := a.hasher.Hash(newSecret)
	if err != nil {
		return err
	}
	if err := a.principals.UpdateSecretHash(ctx, principalID, hash); err != nil {
		return fmt.Errorf("rotating secret: %w", err)
	}

	// Old refresh tokens die with the old credential.
	if err := a.refreshes.DeleteForPrincipal(ctx, principalID); err != nil {
		return fmt.Errorf("deleting refresh tokens: %w", err)
	}
	return nil
}

// Verifier exposes the underlying token verifier for the request guard.
func (a *Authority) Verifier() token.Verifier {
	return a.issuer
}

// mintPair issues an access token and a stored refresh token.
func (a *Authority) mintPair(ctx context.Context, p *principal.Principal) (*TokenPair, error) {
	signed, claims, err := a.issuer.Issue(p.ID, p.Roles, a.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("issuing access token: %w", err)
	}

	value, err := refresh.Generate()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if err := a.refreshes.Save(ctx, &refresh.Token{
		Token:       value,
		PrincipalID: p.ID,
		ExpiresAt:   now.Add(a.refreshTTL),
		CreatedAt:   now,
	}); err != nil {
		return nil, fmt.Errorf("saving refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  signed,
		RefreshToken: value,
		ExpiresAt:    claims.ExpiresAt.Time,
	}, nil
}

// audit records an event, logging (but not failing the request) when the
// audit backend is down.
func (a *Authority) audit(ctx context.Context, event *audit.Event) {
	if err := a.auditor.Log(ctx, event); err != nil {
		slog.WarnContext(ctx, "audit log failed", "error", err, "action", event.Action)
	}
}
