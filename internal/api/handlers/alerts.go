package handlers

import (
	"net/http"
	"school-transport-service/internal/api/dto"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/services"
	"strconv"
	"strings"
	"time"
)

type AlertHandler struct {
	Alerts *services.AlertService
}

// List returns recent alerts, newest first. Query: type (comma separated),
// since (RFC 3339), limit.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var types []domain.AlertType
	if v := strings.TrimSpace(q.Get("type")); v != "" {
		for _, s := range strings.Split(v, ",") {
			types = append(types, domain.AlertType(strings.TrimSpace(s)))
		}
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return
		}
		since = t
	}

	limit := 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	alerts, err := h.Alerts.List(r.Context(), types, since, limit)
	if err != nil {
		writeServiceError(w, r, "list alerts", err)
		return
	}
	if alerts == nil {
		alerts = []*domain.Alert{}
	}

	writeJSON(w, r, http.StatusOK, dto.ListAlertsResponse{Alerts: alerts})
}
