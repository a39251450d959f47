package authn

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tokengate/tokengate/pkg/audit"
	"github.com/tokengate/tokengate/pkg/revocation"
	"github.com/tokengate/tokengate/pkg/token"
)

// unauthenticatedBody is the only failure detail a client ever sees from
// the guard. Which taxonomy error actually fired stays in logs and audit.
const unauthenticatedBody = "invalid or missing credentials"

// BearerToken extracts the bearer credential from a request. The second
// return is false when the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	value, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// Guard verifies each request's bearer token and attaches the resolved
// identity to the context. Authentication failure is terminal for the
// request: there are no retries and no token regeneration.
type Guard struct {
	verifier token.Verifier
	auditor  audit.Logger
}

// NewGuard creates a Guard. A nil audit logger disables audit events.
func NewGuard(verifier token.Verifier, auditor audit.Logger) *Guard {
	if auditor == nil {
		auditor = &audit.NopLogger{}
	}
	return &Guard{verifier: verifier, auditor: auditor}
}

// Middleware wraps a handler with the guard.
func (g *Guard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			bearer, ok := BearerToken(r)
			if !ok {
				g.reject(ctx, w, r, "missing_credential", nil)
				return
			}

			ident, err := g.verifier.Verify(ctx, bearer)
			if errors.Is(err, revocation.ErrStoreUnavailable) {
				// A dead revocation backend says nothing about the
				// credential. Tell the client to retry rather than forcing
				// a re-login that would hit the same backend.
				g.unavailable(ctx, w, r, err)
				return
			}
			if err != nil {
				g.reject(ctx, w, r, errorKind(err), err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, ident)))
		})
	}
}

// reject writes the generic 401 and records the real reason for operators.
func (g *Guard) reject(ctx context.Context, w http.ResponseWriter, r *http.Request, kind string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	event := audit.NewEvent(audit.ActionAuthenticate).
		WithRemote(r.RemoteAddr).
		Failed(kind, detail)
	if logErr := g.auditor.Log(ctx, event); logErr != nil {
		slog.WarnContext(ctx, "audit log failed", "error", logErr)
	}
	slog.DebugContext(ctx, "request rejected", "kind", kind, "path", r.URL.Path)

	writeJSONError(w, http.StatusUnauthorized, unauthenticatedBody)
}

// unavailable answers 503 when verification could not consult the revocation
// store. The credential may be perfectly valid; the caller should retry.
func (g *Guard) unavailable(ctx context.Context, w http.ResponseWriter, r *http.Request, err error) {
	event := audit.NewEvent(audit.ActionAuthenticate).
		WithRemote(r.RemoteAddr).
		Failed("store_unavailable", err.Error())
	if logErr := g.auditor.Log(ctx, event); logErr != nil {
		slog.WarnContext(ctx, "audit log failed", "error", logErr)
	}
	slog.ErrorContext(ctx, "revocation store unavailable", "error", err, "path", r.URL.Path)

	writeJSONError(w, http.StatusServiceUnavailable, "verification unavailable, retry later")
}

// errorKind maps a verification error to its audit kind.
func errorKind(err error) string {
	switch {
	case errors.Is(err, token.ErrMalformed):
		return "malformed"
	case errors.Is(err, token.ErrBadSignature):
		return "bad_signature"
	case errors.Is(err, token.ErrExpired):
		return "expired"
	case errors.Is(err, token.ErrRevoked):
		return "revoked"
	default:
		return "verify_error"
	}
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
