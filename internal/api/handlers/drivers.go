package handlers

import (
	"net/http"
	"school-transport-service/internal/api/dto"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/services"
	"time"
)

type DriverHandler struct {
	Ingest *services.GPSIngest
}

// ReportLocation ingests one GPS ping for the driver in the path.
func (h *DriverHandler) ReportLocation(w http.ResponseWriter, r *http.Request) {
	var req dto.LocationPingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ping := domain.LocationPing{
		DriverID:   r.PathValue("driverID"),
		Location:   domain.GeoPoint{Lat: req.Lat, Lng: req.Lng},
		Speed:      req.Speed,
		Heading:    req.Heading,
		Accuracy:   req.Accuracy,
		TripID:     req.TripID,
		RecordedAt: req.RecordedAt,
	}

	res, err := h.Ingest.Ingest(r.Context(), ping)
	if err != nil {
		writeServiceError(w, r, "ingest location", err)
		return
	}

	out := dto.LocationPingResponse{
		PingID:     res.PingID,
		ReceivedAt: res.ReceivedAt,
		OutOfOrder: res.OutOfOrder,
		NoGPSAlert: res.NoGPSAlert,
	}
	if res.Deviation != nil && res.Deviation.Monitored {
		out.Deviation = &dto.DeviationResponse{
			Deviated:         res.Deviation.Deviated,
			DistanceMeters:   res.Deviation.DistanceMeters,
			ExpectedLocation: res.Deviation.Expected,
		}
	}

	writeJSON(w, r, http.StatusAccepted, out)
}

// Heatmap returns the driver's ping density between start and end
// (RFC 3339). The window defaults to the last 24 hours.
func (h *DriverHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	driverID := r.PathValue("driverID")

	end := time.Now().UTC()
	if v := r.URL.Query().Get("end"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "end must be an RFC 3339 timestamp")
			return
		}
		end = t.UTC()
	}

	start := end.Add(-24 * time.Hour)
	if v := r.URL.Query().Get("start"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "start must be an RFC 3339 timestamp")
			return
		}
		start = t.UTC()
	}

	cells, err := h.Ingest.Heatmap(r.Context(), driverID, start, end)
	if err != nil {
		writeServiceError(w, r, "heatmap", err)
		return
	}

	res := dto.HeatmapResponse{
		DriverID: driverID,
		Start:    start,
		End:      end,
		Cells:    make([]dto.HeatmapCellResponse, 0, len(cells)),
	}
	for _, c := range cells {
		res.Cells = append(res.Cells, dto.HeatmapCellResponse{Lat: c.Lat, Lng: c.Lng, Hour: c.Hour, Weight: c.Weight})
	}

	writeJSON(w, r, http.StatusOK, res)
}
