package handlers

import (
	"net/http"
	"school-transport-service/internal/api/dto"
	"school-transport-service/internal/services"
)

type TripHandler struct {
	Arrival *services.ArrivalMonitor
}

// Lateness runs an on-demand late-arrival check for one trip.
func (h *TripHandler) Lateness(w http.ResponseWriter, r *http.Request) {
	tripID := r.PathValue("tripID")

	res, err := h.Arrival.CheckLateArrival(r.Context(), tripID)
	if err != nil {
		writeServiceError(w, r, "check lateness", err)
		return
	}

	out := dto.LatenessResponse{
		TripID:       tripID,
		Late:         res.Late,
		AlertRaised:  res.AlertRaised,
		DelayMinutes: res.DelayMinutes,
	}
	if !res.ETA.IsZero() {
		out.ETA = &res.ETA
		out.ScheduledAt = &res.ScheduledAt
	}

	writeJSON(w, r, http.StatusOK, out)
}

func (h *TripHandler) End(w http.ResponseWriter, r *http.Request) {
	if err := h.Arrival.EndTrip(r.Context(), r.PathValue("tripID")); err != nil {
		writeServiceError(w, r, "end trip", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
