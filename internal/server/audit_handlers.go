package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tokengate/tokengate/pkg/audit"
)

// auditEventsResponse wraps a list of audit events, newest first.
type auditEventsResponse struct {
	Events []audit.Event `json:"events"`
	Count  int           `json:"count"`
}

// handleListAuditEvents handles GET /api/v1/audit/events. The owner path
// value is empty here, so the policy gate admits elevated roles only.
//
// @Summary      List audit events
// @Description  Returns audit events matching the filter, newest first.
// @Description  Restricted to principals with an elevated role.
// @Tags         Audit
// @Produce      json
// @Param        principal_id  query  string   false  "Filter by principal id"
// @Param        action        query  string   false  "Filter by action"
// @Param        success       query  boolean  false  "Filter by outcome"
// @Param        since         query  string   false  "Events at or after this time (RFC 3339)"
// @Param        until         query  string   false  "Events before this time (RFC 3339)"
// @Param        limit         query  integer  false  "Maximum events to return (default: 100)"
// @Success      200  {object}  auditEventsResponse
// @Failure      400  {object}  errorResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      501  {object}  errorResponse
// @Security     BearerAuth
// @Router       /audit/events [get]
func (h *Handler) handleListAuditEvents(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authorize(w, r, "audit.read"); !ok {
		return
	}

	filter, err := parseAuditFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.auditor.Query(r.Context(), filter)
	if errors.Is(err, audit.ErrQueryUnsupported) {
		writeError(w, http.StatusNotImplemented, "audit backend is not queryable")
		return
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, auditEventsResponse{Events: events, Count: len(events)})
}

// parseAuditFilter builds a query filter from URL parameters. Unparsable
// values are errors rather than silently ignored filters.
func parseAuditFilter(q url.Values) (audit.QueryFilter, error) {
	filter := audit.QueryFilter{
		PrincipalID: q.Get("principal_id"),
		Action:      q.Get("action"),
	}

	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, errors.New("success must be a boolean")
		}
		filter.Success = &b
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{
		{"since", &filter.Since},
		{"until", &filter.Until},
	} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, errors.New(p.name + " must be an RFC 3339 timestamp")
		}
		*p.dst = &ts
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, errors.New("limit must be a non-negative integer")
		}
		filter.Limit = n
	}

	return filter, nil
}
