package authority

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tokengate/tokengate/pkg/credential"
	"github.com/tokengate/tokengate/pkg/principal"
	"github.com/tokengate/tokengate/pkg/refresh"
	"github.com/tokengate/tokengate/pkg/revocation"
	"github.com/tokengate/tokengate/pkg/token"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newTestAuthority(t *testing.T) *Authority {
	t.Helper()
	issuer, err := token.NewIssuer(testKey, revocation.NewMemoryStore())
	require.NoError(t, err)

	return New(
		principal.NewMemoryStore(),
		credential.NewBcryptHasher(bcrypt.MinCost),
		issuer,
		refresh.NewMemoryStore(),
		nil,
		Config{AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour},
	)
}

func TestAuthority_RegisterAndLogin(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	p, err := a.Register(ctx, "u1", "pw123", "User One")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.NotEqual(t, "pw123", p.SecretHash, "secret must not be stored verbatim")

	pair, err := a.Login(ctx, "u1", "pw123")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), pair.ExpiresAt, 5*time.Second)

	ident, err := a.Verifier().Verify(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, ident.PrincipalID)
}

func TestAuthority_RegisterValidation(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	_, err := a.Register(ctx, "", "pw", "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = a.Register(ctx, "u1", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAuthority_RegisterDuplicateLogin(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	_, err := a.Register(ctx, "u1", "pw123", "")
	require.NoError(t, err)

	_, err = a.Register(ctx, "u1", "other", "")
	assert.ErrorIs(t, err, principal.ErrExists)
}

func TestAuthority_LoginFailures(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	_, err := a.Register(ctx, "u1", "pw123", "")
	require.NoError(t, err)

	// Wrong secret and unknown login are indistinguishable.
	_, err = a.Login(ctx, "u1", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Login(ctx, "nobody", "pw123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthority_RefreshRotation(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	_, err := a.Register(ctx, "u1", "pw123", "")
	require.NoError(t, err)
	pair, err := a.Login(ctx, "u1", "pw123")
	require.NoError(t, err)

	next, err := a.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)

	// The consumed token cannot be replayed.
	_, err = a.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// The rotated token works.
	_, err = a.Refresh(ctx, next.RefreshToken)
	require.NoError(t, err)
}

func TestAuthority_RefreshConcurrentSingleWinner(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	_, err := a.Register(ctx, "u1", "pw123", "")
	require.NoError(t, err)
	pair, err := a.Login(ctx, "u1", "pw123")
	require.NoError(t, err)

	// Double redemption of a stolen-then-replayed refresh token must lose
	// to the legitimate rotation regardless of interleaving.
	const racers = 8
	wins := make(chan *TokenPair, racers)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			next, err := a.Refresh(ctx, pair.RefreshToken)
			if err == nil {
				wins <- next
				return
			}
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		}()
	}
	close(start)
	wg.Wait()
	close(wins)

	require.Len(t, wins, 1, "exactly one rotation succeeds")
	next := <-wins
	_, err = a.Refresh(ctx, next.RefreshToken)
	assert.NoError(t, err, "the winner's token remains usable")
}

func TestAuthority_RefreshGarbage(t *testing.T) {
	a := newTestAuthority(t)

	_, err := a.Refresh(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthority_Logout(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	_, err := a.Register(ctx, "u1", "pw123", "")
	require.NoError(t, err)
	pair, err := a.Login(ctx, "u1", "pw123")
	require.NoError(t, err)

	require.NoError(t, a.Logout(ctx, pair.AccessToken))

	// The access token is revoked before its natural expiry.
	_, err = a.Verifier().Verify(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, token.ErrRevoked)

	// The refresh token is gone too.
	_, err = a.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Logging out with the revoked token fails cleanly.
	err = a.Logout(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// downRevocations is a revocation store whose backend is unreachable.
type downRevocations struct{}

func (downRevocations) Revoke(context.Context, string, time.Time) error {
	return fmt.Errorf("inserting revocation: %w", revocation.ErrStoreUnavailable)
}

func (downRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, fmt.Errorf("querying revocation: %w", revocation.ErrStoreUnavailable)
}

func (downRevocations) Cleanup(context.Context) error { return nil }

func (downRevocations) Close() error { return nil }

func TestAuthority_LogoutStoreUnavailable(t *testing.T) {
	healthy := newTestAuthority(t)
	ctx := context.Background()

	_, err := healthy.Register(ctx, "u1", "pw123", "")
	require.NoError(t, err)
	pair, err := healthy.Login(ctx, "u1", "pw123")
	require.NoError(t, err)

	issuer, err := token.NewIssuer(testKey, downRevocations{})
	require.NoError(t, err)
	degraded := New(
		healthy.principals,
		healthy.hasher,
		issuer,
		healthy.refreshes,
		nil,
		Config{AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour},
	)

	// The token may well be valid; the failure must not read as a
	// credential problem.
	err = degraded.Logout(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, revocation.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthority_RotateSecret(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	p, err := a.Register(ctx, "u1", "old-pw", "")
	require.NoError(t, err)
	pair, err := a.Login(ctx, "u1", "old-pw")
	require.NoError(t, err)

	require.NoError(t, a.RotateSecret(ctx, p.ID, "old-pw", "new-pw"))

	_, err = a.Login(ctx, "u1", "old-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Login(ctx, "u1", "new-pw")
	require.NoError(t, err)

	// Refresh tokens minted under the old credential are dead.
	_, err = a.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthority_RotateSecretWrongCurrent(t *testing.T) {
	a := newTestAuthority(t)
	ctx := context.Background()

	p, err := a.Register(ctx, "u1", "pw123", "")
	require.NoError(t, err)

	err = a.RotateSecret(ctx, p.ID, "wrong", "new-pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
