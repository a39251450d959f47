package principal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrincipal(id, login string) *Principal {
	return &Principal{
		ID:          id,
		Login:       login,
		DisplayName: "Test User",
		SecretHash:  "$2a$10$hash",
		Roles:       []string{"user"},
		CreatedAt:   time.Now(),
	}
}

func TestMemoryStoreCreateGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testPrincipal("p1", "alice")))

	byLogin, err := s.GetByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "p1", byLogin.ID)

	byID, err := s.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Login)
}

func TestMemoryStoreCreateDuplicateLogin(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testPrincipal("p1", "alice")))
	err := s.Create(ctx, testPrincipal("p2", "alice"))
	assert.ErrorIs(t, err, ErrExists)
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetByLogin(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetByID(ctx, "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreUpdateSecretHash(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testPrincipal("p1", "alice")))
	require.NoError(t, s.UpdateSecretHash(ctx, "p1", "$2a$10$rotated"))

	p, err := s.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$rotated", p.SecretHash)

	// Both indexes see the rotation.
	p, err = s.GetByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$rotated", p.SecretHash)
}

func TestMemoryStoreUpdateSecretHashMissing(t *testing.T) {
	s := NewMemoryStore()
	err := s.UpdateSecretHash(context.Background(), "absent", "hash")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, testPrincipal("p1", "alice")))

	p, err := s.GetByID(ctx, "p1")
	require.NoError(t, err)
	p.SecretHash = "mutated"
	p.Roles[0] = "admin"

	again, err := s.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "$2a$10$hash", again.SecretHash)
	assert.Equal(t, []string{"user"}, again.Roles)
}
