package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/tokengate/tokengate/pkg/audit"
	"github.com/tokengate/tokengate/pkg/authn"
	"github.com/tokengate/tokengate/pkg/token"
)

// cartState is the session payload for the cart API: item name to quantity.
type cartState map[string]int

type cartResponse struct {
	PrincipalID string    `json:"principal_id"`
	Items       cartState `json:"items"`
}

type addItemRequest struct {
	Item string `json:"item"`
	Qty  int    `json:"qty"`
}

// authorize resolves the request identity and runs it through the policy
// gate. It writes the response itself on failure.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, operation string) (*token.Identity, bool) {
	ident := authn.IdentityFrom(r.Context())
	if ident == nil {
		// The guard always runs first; a missing identity is a wiring bug.
		writeError(w, http.StatusUnauthorized, "invalid or missing credentials")
		return nil, false
	}

	owner := r.PathValue("principalID")
	allowed, reason := h.deps.Gate.Authorize(r.Context(), ident, operation, owner)
	if !allowed {
		_ = h.auditor.Log(r.Context(), audit.NewEvent(audit.ActionAuthorize).
			WithPrincipal(ident.PrincipalID).
			WithResource(owner).
			Failed("denied", reason))
		writeError(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return ident, true
}

// decodeCart interprets a session snapshot as cart state. A nil snapshot is
// an empty cart.
func decodeCart(state json.RawMessage) (cartState, error) {
	cart := cartState{}
	if len(state) == 0 {
		return cart, nil
	}
	if err := json.Unmarshal(state, &cart); err != nil {
		return nil, fmt.Errorf("decoding cart state: %w", err)
	}
	return cart, nil
}

// handleGetCart handles GET /api/v1/carts/{principalID}.
//
// @Summary      Get cart
// @Description  Returns the cart snapshot. A principal with no cart gets an
// @Description  empty one.
// @Tags         Carts
// @Produce      json
// @Param        principalID  path  string  true  "Cart owner"
// @Success      200  {object}  cartResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Security     BearerAuth
// @Router       /carts/{principalID} [get]
func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, "cart.read"); !ok {
		return
	}
	owner := r.PathValue("principalID")

	state, _, err := h.deps.Sessions.Get(r.Context(), owner)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	cart, err := decodeCart(state)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{PrincipalID: owner, Items: cart})
}

// handleAddItem handles POST /api/v1/carts/{principalID}/items.
//
// @Summary      Add cart item
// @Description  Adds qty of an item to the cart and returns the updated
// @Description  snapshot. Mutations to the same cart are serialized.
// @Tags         Carts
// @Accept       json
// @Produce      json
// @Param        principalID  path  string          true  "Cart owner"
// @Param        body         body  addItemRequest  true  "Item to add"
// @Success      200  {object}  cartResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Security     BearerAuth
// @Router       /carts/{principalID}/items [post]
func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, "cart.write"); !ok {
		return
	}
	owner := r.PathValue("principalID")

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Item == "" || req.Qty <= 0 {
		writeError(w, http.StatusBadRequest, "item and a positive qty are required")
		return
	}

	next, err := h.deps.Sessions.Update(r.Context(), owner, func(current json.RawMessage) (json.RawMessage, error) {
		cart, err := decodeCart(current)
		if err != nil {
			return nil, err
		}
		cart[req.Item] += req.Qty
		return json.Marshal(cart)
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	cart, err := decodeCart(next)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{PrincipalID: owner, Items: cart})
}

// handleRemoveItem handles DELETE /api/v1/carts/{principalID}/items/{item}.
//
// @Summary      Remove cart item
// @Description  Removes an item from the cart entirely and returns the
// @Description  updated snapshot. Removing an absent item is a no-op.
// @Tags         Carts
// @Produce      json
// @Param        principalID  path  string  true  "Cart owner"
// @Param        item         path  string  true  "Item name"
// @Success      200  {object}  cartResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Security     BearerAuth
// @Router       /carts/{principalID}/items/{item} [delete]
func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, "cart.write"); !ok {
		return
	}
	owner := r.PathValue("principalID")
	item := r.PathValue("item")

	next, err := h.deps.Sessions.Update(r.Context(), owner, func(current json.RawMessage) (json.RawMessage, error) {
		cart, err := decodeCart(current)
		if err != nil {
			return nil, err
		}
		delete(cart, item)
		return json.Marshal(cart)
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	cart, err := decodeCart(next)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cartResponse{PrincipalID: owner, Items: cart})
}

// handleClearCart handles DELETE /api/v1/carts/{principalID}.
//
// @Summary      Clear cart
// @Description  Removes the cart entirely. Clearing a missing cart succeeds.
// @Tags         Carts
// @Produce      json
// @Success      204  "No Content"
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Security     BearerAuth
// @Router       /carts/{principalID} [delete]
func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.authorize(w, r, "cart.write")
	if !ok {
		return
	}
	owner := r.PathValue("principalID")

	if err := h.deps.Sessions.Clear(r.Context(), owner); err != nil {
		writeDomainError(w, r, err)
		return
	}

	_ = h.auditor.Log(r.Context(), audit.NewEvent(audit.ActionSession).
		WithPrincipal(ident.PrincipalID).
		WithResource(owner).
		Succeeded())
	w.WriteHeader(http.StatusNoContent)
}
