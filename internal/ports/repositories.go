package ports

import (
	"context"
	"school-transport-service/internal/domain"
	"time"
)

// Port: persistence of optimized routes.
type RouteRepository interface {
	// Persist route as the only active route for its (driver, school) pair.
	// Marking the previous active route inactive and inserting the new one
	// happen in a single transaction.
	Save(ctx context.Context, route *domain.OptimizedRoute) error
	// Return the route with the given id, or domain.ErrNotFound.
	GetByID(ctx context.Context, routeID string) (*domain.OptimizedRoute, error)
	// Return the active route for the pair, or domain.ErrNotFound.
	GetActive(ctx context.Context, driverID, schoolID string) (*domain.OptimizedRoute, error)
}

// Port: append-only GPS ping log.
type PingRepository interface {
	Append(ctx context.Context, ping *domain.LocationPing) error
	// Return the most recent ping for the driver, or domain.ErrNotFound.
	Latest(ctx context.Context, driverID string) (*domain.LocationPing, error)
	// Return pings received in [from, to), oldest first.
	ListRange(ctx context.Context, driverID string, from, to time.Time) ([]*domain.LocationPing, error)
}

// Port: alert persistence.
type AlertRepository interface {
	Create(ctx context.Context, alert *domain.Alert) error
	// Return alerts of the given types created at or after since, newest
	// first. An empty types slice matches every type.
	ListByTypes(ctx context.Context, types []domain.AlertType, since time.Time, limit int) ([]*domain.Alert, error)
}

// Port: read access to trip scheduling owned by trip management.
type TripRepository interface {
	// Return the trip, or domain.ErrNotFound.
	GetTrip(ctx context.Context, tripID string) (*domain.Trip, error)
	ListActive(ctx context.Context) ([]*domain.Trip, error)
	// Mark the trip completed, or return domain.ErrNotFound.
	EndTrip(ctx context.Context, tripID string) error
}
