package handler

import (
	"net/http"
)

// ----- Handler: GET /admin/health -----

// handleHealth reports dependency checks; a degraded result is served as 503.
func (handler *AdminHTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	res := handler.svc.Health(ctx)

	status := http.StatusOK
	if res.Status != "ok" {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Cache-Control", "no-store")
	handler.jsonResponse(ctx, w, status, res)
}
