package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tokengate/tokengate/pkg/authority"
	"github.com/tokengate/tokengate/pkg/principal"
	"github.com/tokengate/tokengate/pkg/revocation"
	"github.com/tokengate/tokengate/pkg/session"
	"github.com/tokengate/tokengate/pkg/token"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// errorResponse is the error body shape for every endpoint.
type errorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError is the single boundary mapping domain errors to HTTP
// statuses. Authentication failures stay generic; everything unexpected is
// logged and reported as a plain 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, authority.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, principal.ErrExists):
		writeError(w, http.StatusConflict, "login already taken")
	case errors.Is(err, authority.ErrInvalidCredentials),
		errors.Is(err, token.ErrMalformed),
		errors.Is(err, token.ErrBadSignature),
		errors.Is(err, token.ErrExpired),
		errors.Is(err, token.ErrRevoked):
		writeError(w, http.StatusUnauthorized, "invalid or missing credentials")
	case errors.Is(err, session.ErrStoreUnavailable),
		errors.Is(err, revocation.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "state store unavailable, retry later")
	default:
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes a request body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
