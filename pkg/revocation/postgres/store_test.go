package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokengate/tokengate/pkg/revocation"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(db), mock
}

func TestRevoke(t *testing.T) {
	store, mock := newMockStore(t)
	expiresAt := time.Now().Add(time.Hour)

	mock.ExpectExec("INSERT INTO revoked_tokens .+ ON CONFLICT \\(token_id\\) DO NOTHING").
		WithArgs("jti-1", expiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Revoke(context.Background(), "jti-1", expiresAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRevoked(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	revoked, err := store.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestIsRevokedFalse(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("jti-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	revoked, err := store.IsRevoked(context.Background(), "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestBackendFailureIsStoreUnavailable(t *testing.T) {
	store, mock := newMockStore(t)
	backendDown := errors.New("connection refused")

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("jti-1").
		WillReturnError(backendDown)

	_, err := store.IsRevoked(context.Background(), "jti-1")
	assert.ErrorIs(t, err, revocation.ErrStoreUnavailable)
	assert.ErrorIs(t, err, backendDown, "driver error stays in the chain")

	mock.ExpectExec("INSERT INTO revoked_tokens").
		WithArgs("jti-1", sqlmock.AnyArg()).
		WillReturnError(backendDown)

	err = store.Revoke(context.Background(), "jti-1", time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, revocation.ErrStoreUnavailable)
}

func TestCleanup(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("DELETE FROM revoked_tokens WHERE expires_at").
		WillReturnResult(sqlmock.NewResult(0, 4))

	require.NoError(t, store.Cleanup(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
