// Package server assembles the session authority's HTTP surface: the
// credential endpoints, the guarded cart and audit APIs, health probes and the
// OpenAPI UI.
package server

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/tokengate/tokengate/pkg/audit"
	"github.com/tokengate/tokengate/pkg/authn"
	"github.com/tokengate/tokengate/pkg/authority"
	"github.com/tokengate/tokengate/pkg/health"
	"github.com/tokengate/tokengate/pkg/policy"
	"github.com/tokengate/tokengate/pkg/session"
)

// Version is set at build time.
var Version = "dev"

// Deps carries everything the HTTP layer needs. All fields except Auditor
// and Health are required.
type Deps struct {
	Authority *authority.Authority
	Sessions  session.Store
	Gate      policy.Gate
	Auditor   audit.Logger
	Health    *health.Checker
}

// Handler is the root HTTP handler.
type Handler struct {
	mux     *http.ServeMux
	deps    Deps
	guard   *authn.Guard
	auditor audit.Logger
}

// New creates the root handler and registers all routes.
func New(deps Deps) *Handler {
	auditor := deps.Auditor
	if auditor == nil {
		auditor = &audit.NopLogger{}
	}
	h := &Handler{
		mux:     http.NewServeMux(),
		deps:    deps,
		guard:   authn.NewGuard(deps.Authority.Verifier(), auditor),
		auditor: auditor,
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// registerRoutes registers all API routes. The cart routes sit behind the
// bearer guard; the credential endpoints are open by construction.
func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("POST /api/v1/register", h.handleRegister)
	h.mux.HandleFunc("POST /api/v1/login", h.handleLogin)
	h.mux.HandleFunc("POST /api/v1/refresh", h.handleRefresh)
	h.mux.HandleFunc("POST /api/v1/logout", h.handleLogout)

	guarded := h.guard.Middleware()
	carts := http.NewServeMux()
	carts.HandleFunc("GET /api/v1/carts/{principalID}", h.handleGetCart)
	carts.HandleFunc("DELETE /api/v1/carts/{principalID}", h.handleClearCart)
	carts.HandleFunc("POST /api/v1/carts/{principalID}/items", h.handleAddItem)
	carts.HandleFunc("DELETE /api/v1/carts/{principalID}/items/{item}", h.handleRemoveItem)
	h.mux.Handle("/api/v1/carts/", guarded(carts))

	h.mux.Handle("GET /api/v1/audit/events", guarded(http.HandlerFunc(h.handleListAuditEvents)))

	if h.deps.Health != nil {
		h.mux.HandleFunc("GET /healthz", h.deps.Health.LivenessHandler())
		h.mux.HandleFunc("GET /readyz", h.deps.Health.ReadinessHandler())
	}

	h.mux.Handle("GET /swagger/", httpSwagger.Handler())
}
