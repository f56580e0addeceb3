package api

import (
	"context"
	"net/http"
)

// RefreshDependencies drops and reloads the cached datasets.
type RefreshDependencies interface {
	Refresh(ctx context.Context) error
}

// RefreshHandler handles manual cache refreshes.
type RefreshHandler struct {
	deps RefreshDependencies
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(deps RefreshDependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps}
}

type refreshResponse struct {
	Status string `json:"status"`
}

// HandlePostRefresh handles POST /api/v1/refresh requests. A dataset that
// fails to reload is reported as 502; the others stay refreshed.
func (h *RefreshHandler) HandlePostRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_refresh"
	if !methodAllowed(w, r, http.MethodPost) {
		return
	}
	if err := h.deps.Refresh(r.Context()); err != nil {
		WriteFailure(w, WrapKind(op, ErrUpstream, err))
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Status: "refreshed"})
}
