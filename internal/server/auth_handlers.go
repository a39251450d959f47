package server

import (
	"net/http"

	"github.com/tokengate/tokengate/pkg/authn"
	"github.com/tokengate/tokengate/pkg/authority"
)

type registerRequest struct {
	Login       string `json:"login"`
	Secret      string `json:"secret"`
	DisplayName string `json:"display_name"`
}

type registerResponse struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name,omitempty"`
}

// handleRegister handles POST /api/v1/register.
//
// @Summary      Register a principal
// @Description  Creates a principal from a login and secret. The secret is
// @Description  stored only as a hash.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  registerRequest  true  "Registration"
// @Success      201  {object}  registerResponse
// @Failure      400  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /register [post]
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	p, err := h.deps.Authority.Register(r.Context(), req.Login, req.Secret, req.DisplayName)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		ID:          p.ID,
		Login:       p.Login,
		DisplayName: p.DisplayName,
	})
}

type loginRequest struct {
	Login  string `json:"login"`
	Secret string `json:"secret"`
}

// handleLogin handles POST /api/v1/login.
//
// @Summary      Log in
// @Description  Verifies the secret and returns an access/refresh token pair.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  loginRequest  true  "Credentials"
// @Success      200  {object}  authority.TokenPair
// @Failure      401  {object}  errorResponse
// @Router       /login [post]
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Login == "" || req.Secret == "" {
		// Same body as a failed verification; probing for required
		// fields learns nothing about which logins exist.
		writeError(w, http.StatusUnauthorized, "invalid or missing credentials")
		return
	}

	pair, err := h.deps.Authority.Login(r.Context(), req.Login, req.Secret)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// handleRefresh handles POST /api/v1/refresh.
//
// @Summary      Refresh tokens
// @Description  Rotates the refresh token and mints a new pair. The
// @Description  presented token is consumed.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body  refreshRequest  true  "Refresh token"
// @Success      200  {object}  authority.TokenPair
// @Failure      401  {object}  errorResponse
// @Router       /refresh [post]
func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusUnauthorized, "invalid or missing credentials")
		return
	}

	pair, err := h.deps.Authority.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// handleLogout handles POST /api/v1/logout.
//
// @Summary      Log out
// @Description  Revokes the presented access token and deletes the
// @Description  principal's refresh tokens. Session state survives.
// @Tags         Auth
// @Produce      json
// @Success      204  "No Content"
// @Failure      401  {object}  errorResponse
// @Security     BearerAuth
// @Router       /logout [post]
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	bearer, ok := authn.BearerToken(r)
	if !ok {
		writeDomainError(w, r, authority.ErrInvalidCredentials)
		return
	}

	if err := h.deps.Authority.Logout(r.Context(), bearer); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
