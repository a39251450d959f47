package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tokengate/tokengate/pkg/audit"
	"github.com/tokengate/tokengate/pkg/authority"
	"github.com/tokengate/tokengate/pkg/credential"
	"github.com/tokengate/tokengate/pkg/policy"
	"github.com/tokengate/tokengate/pkg/principal"
	"github.com/tokengate/tokengate/pkg/refresh"
	"github.com/tokengate/tokengate/pkg/revocation"
	"github.com/tokengate/tokengate/pkg/session"
	"github.com/tokengate/tokengate/pkg/token"
)

// recordingAuditor keeps events in memory and answers queries against them,
// standing in for the PostgreSQL audit store.
type recordingAuditor struct {
	mu         sync.Mutex
	events     []audit.Event
	lastFilter audit.QueryFilter
}

func (a *recordingAuditor) Log(_ context.Context, event *audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, *event)
	return nil
}

func (a *recordingAuditor) Query(_ context.Context, filter audit.QueryFilter) ([]audit.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastFilter = filter

	var out []audit.Event
	for _, e := range a.events {
		if filter.PrincipalID != "" && e.PrincipalID != filter.PrincipalID {
			continue
		}
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		if filter.Success != nil && e.Success != *filter.Success {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (a *recordingAuditor) Close() error { return nil }

// newAuditTestHandler builds a handler over the given auditor, plus an
// admin principal credential that passes the elevated-role gate.
func newAuditTestHandler(t *testing.T, auditor audit.Logger) *Handler {
	t.Helper()

	principals := principal.NewMemoryStore()
	hasher := credential.NewBcryptHasher(bcrypt.MinCost)

	issuer, err := token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), revocation.NewMemoryStore())
	require.NoError(t, err)

	auth := authority.New(
		principals,
		hasher,
		issuer,
		refresh.NewMemoryStore(),
		auditor,
		authority.Config{AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour},
	)

	hash, err := hasher.Hash("open sesame")
	require.NoError(t, err)
	require.NoError(t, principals.Create(context.Background(), &principal.Principal{
		ID:         uuid.NewString(),
		Login:      "root",
		SecretHash: hash,
		Roles:      []string{"admin"},
		CreatedAt:  time.Now(),
	}))

	return New(Deps{
		Authority: auth,
		Sessions:  session.NewMemoryStore(time.Hour),
		Gate:      policy.NewOwnerGate("admin"),
		Auditor:   auditor,
	})
}

func adminLogin(t *testing.T, h *Handler) *authority.TokenPair {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/api/v1/login", "", map[string]string{
		"login": "root", "secret": "open sesame",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var pair authority.TokenPair
	require.NoError(t, json.NewDecoder(w.Body).Decode(&pair))
	return &pair
}

func TestAuditEventsRequireElevatedRole(t *testing.T) {
	h := newAuditTestHandler(t, &recordingAuditor{})
	_, alicePair := registerAndLogin(t, h, "alice")

	w := doJSON(t, h, http.MethodGet, "/api/v1/audit/events", alicePair.AccessToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, h, http.MethodGet, "/api/v1/audit/events", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuditEventsList(t *testing.T) {
	h := newAuditTestHandler(t, &recordingAuditor{})
	registerAndLogin(t, h, "alice")
	pair := adminLogin(t, h)

	w := doJSON(t, h, http.MethodGet, "/api/v1/audit/events", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp auditEventsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, len(resp.Events), resp.Count)
	require.NotEmpty(t, resp.Events)

	actions := make(map[string]bool)
	for _, e := range resp.Events {
		actions[e.Action] = true
	}
	assert.True(t, actions[audit.ActionRegister], "alice's registration is on record")
	assert.True(t, actions[audit.ActionLogin])
}

func TestAuditEventsFilterParsing(t *testing.T) {
	auditor := &recordingAuditor{}
	h := newAuditTestHandler(t, auditor)
	registerAndLogin(t, h, "alice")
	pair := adminLogin(t, h)

	w := doJSON(t, h, http.MethodGet,
		"/api/v1/audit/events?action=login&success=true&limit=5&since=2026-01-01T00:00:00Z",
		pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, "login", auditor.lastFilter.Action)
	require.NotNil(t, auditor.lastFilter.Success)
	assert.True(t, *auditor.lastFilter.Success)
	assert.Equal(t, 5, auditor.lastFilter.Limit)
	require.NotNil(t, auditor.lastFilter.Since)
	assert.Equal(t, 2026, auditor.lastFilter.Since.Year())
	assert.Nil(t, auditor.lastFilter.Until)

	var resp auditEventsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	for _, e := range resp.Events {
		assert.Equal(t, audit.ActionLogin, e.Action)
		assert.True(t, e.Success)
	}
}

func TestAuditEventsBadFilter(t *testing.T) {
	h := newAuditTestHandler(t, &recordingAuditor{})
	pair := adminLogin(t, h)

	tests := []struct {
		name  string
		query string
	}{
		{"bad success", "?success=maybe"},
		{"bad since", "?since=yesterday"},
		{"bad limit", "?limit=-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodGet, "/api/v1/audit/events"+tt.query, pair.AccessToken, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestAuditEventsUnqueryableBackend(t *testing.T) {
	h := newAuditTestHandler(t, audit.NewSlogLogger(nil))
	pair := adminLogin(t, h)

	w := doJSON(t, h, http.MethodGet, "/api/v1/audit/events", pair.AccessToken, nil)
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}
