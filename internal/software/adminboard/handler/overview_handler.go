package handler

import (
	"context"
	"net/http"
	"strconv"
)

// --- Handler: GET /admin/overview ---

func (handler *AdminHTTPHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	overview, err := handler.svc.GetSystemOverview(ctxWithTimeout)
	if err != nil {
		handler.storeError(ctx, w, "failed to fetch system overview", err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, overview)
}

// --- Handler: GET /admin/trips/active?page=X&page_size=Y ---

func (handler *AdminHTTPHandler) handleActiveTrips(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	query := r.URL.Query()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	trips, err := handler.svc.GetActiveTrips(ctxWithTimeout, query.Get("page"), query.Get("page_size"))
	if err != nil {
		handler.storeError(ctx, w, "failed to fetch active trips", err)
		return
	}

	handler.jsonResponse(ctx, w, http.StatusOK, trips)
}

// --- Handler: GET /admin/events?limit=N ---

func (handler *AdminHTTPHandler) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			handler.httpError(ctx, w, http.StatusBadRequest, "limit must be a positive integer", err)
			return
		}
		limit = n
	}

	events := handler.svc.RecentEvents(limit)
	handler.jsonResponse(ctx, w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}
