package handlers

import (
	"net/http"
	"school-transport-service/internal/api/dto"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/services"
	"strings"
)

type RouteHandler struct {
	Planner *services.RoutePlanner
}

// Create optimizes a stop set and stores it as the pair's active route.
func (h *RouteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRouteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	stops := make([]domain.Stop, 0, len(req.Stops))
	for _, s := range req.Stops {
		stop := domain.Stop{StudentID: strings.TrimSpace(s.StudentID), Address: s.Address}
		if s.Location != nil {
			stop.Location = &domain.GeoPoint{Lat: s.Location.Lat, Lng: s.Location.Lng}
		}
		stops = append(stops, stop)
	}

	route, err := h.Planner.Generate(r.Context(), services.OptimizeRequest{
		DriverID:         strings.TrimSpace(req.DriverID),
		SchoolID:         strings.TrimSpace(req.SchoolID),
		Depot:            domain.GeoPoint{Lat: req.Depot.Lat, Lng: req.Depot.Lng},
		Stops:            stops,
		ScheduledArrival: req.ScheduledArrival,
	})
	if err != nil {
		writeServiceError(w, r, "generate route", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toRouteResponse(route, false))
}

// Get serves the active route, regenerating it first when stale.
func (h *RouteHandler) Get(w http.ResponseWriter, r *http.Request) {
	driverID := r.PathValue("driverID")
	schoolID := r.PathValue("schoolID")

	route, regenerated, err := h.Planner.GetRoute(r.Context(), driverID, schoolID)
	if err != nil {
		writeServiceError(w, r, "get route", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toRouteResponse(route, regenerated))
}

func toRouteResponse(route *domain.OptimizedRoute, regenerated bool) dto.RouteResponse {
	stops := make([]dto.StopETAResponse, 0, len(route.PerStopETA))
	for _, s := range route.PerStopETA {
		stops = append(stops, dto.StopETAResponse{
			StudentID:          s.StudentID,
			Location:           s.Location,
			Address:            s.Address,
			EstimatedArrival:   s.EstimatedArrival,
			LegDurationSeconds: s.LegDurationSeconds,
			LegDistanceMeters:  s.LegDistanceMeters,
		})
	}

	return dto.RouteResponse{
		ID:                   route.ID,
		DriverID:             route.DriverID,
		SchoolID:             route.SchoolID,
		Depot:                route.Depot,
		StopOrder:            route.StopOrder,
		PerStopETA:           stops,
		Geometry:             route.Geometry,
		TotalDurationSeconds: route.TotalDurationSeconds,
		TotalDistanceMeters:  route.TotalDistanceMeters,
		ScheduledArrival:     route.ScheduledArrival,
		GeneratedAt:          route.GeneratedAt,
		Active:               route.Active,
		Regenerated:          regenerated,
	}
}
