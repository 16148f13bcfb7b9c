package ports

import (
	"context"
	"school-transport-service/internal/domain"
)

// StatusOK is the provider status reported for a successful computation.
const StatusOK = "OK"

// One leg of a multi-stop route.
type Leg struct {
	DistanceMeters  int
	DurationSeconds int
	StartLocation   domain.GeoPoint
	EndLocation     domain.GeoPoint
}

type MultiStopRequest struct {
	Origin        domain.GeoPoint
	Destination   domain.GeoPoint
	Waypoints     []domain.GeoPoint
	OptimizeOrder bool
}

// Result of a multi-stop computation. Order is a permutation of waypoint
// indices; Legs run origin -> waypoints (in Order) -> destination.
type MultiStopResult struct {
	Order            []int
	Legs             []Leg
	OverviewGeometry string
	Status           string
}

type ETAResult struct {
	DurationSeconds int
	DistanceMeters  int
	Status          string
}

// Contract for an external routing provider.
type RoutingProvider interface {
	// Compute a route through all waypoints, optionally reordering them to
	// minimize total travel time.
	MultiStopRoute(ctx context.Context, req MultiStopRequest) (MultiStopResult, error)
	// Estimate travel time between two points.
	PointToPointETA(ctx context.Context, origin, destination domain.GeoPoint) (ETAResult, error)
}

// Contract for resolving a free-form address to a point.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.GeoPoint, error)
}
