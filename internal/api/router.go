package api

import (
	"net/http"
	"school-transport-service/internal/api/handlers"
	"school-transport-service/internal/services"
)

// Deps are the services the HTTP layer exposes. Handlers stay unaware of
// concrete adapters.
type Deps struct {
	DB      handlers.Pinger
	Planner *services.RoutePlanner
	Ingest  *services.GPSIngest
	Arrival *services.ArrivalMonitor
	Alerts  *services.AlertService
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	health := &handlers.HealthHandler{DB: d.DB}
	routes := &handlers.RouteHandler{Planner: d.Planner}
	drivers := &handlers.DriverHandler{Ingest: d.Ingest}
	trips := &handlers.TripHandler{Arrival: d.Arrival}
	alerts := &handlers.AlertHandler{Alerts: d.Alerts}

	mux.HandleFunc("GET /health", health.Health)

	mux.HandleFunc("POST /routes", routes.Create)
	mux.HandleFunc("GET /routes/{driverID}/{schoolID}", routes.Get)

	mux.HandleFunc("POST /drivers/{driverID}/location", drivers.ReportLocation)
	mux.HandleFunc("GET /drivers/{driverID}/heatmap", drivers.Heatmap)

	mux.HandleFunc("GET /trips/{tripID}/lateness", trips.Lateness)
	mux.HandleFunc("POST /trips/{tripID}/end", trips.End)

	mux.HandleFunc("GET /alerts", alerts.List)

	return requestIDMiddleware(loggingMiddleware(mux))
}
