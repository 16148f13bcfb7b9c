package ports

import (
	"context"
	"school-transport-service/internal/domain"
)

// Port: one-way alert fan-out. Publish must not block on delivery and never
// reports delivery failures to the caller; implementations log them.
type AlertPublisher interface {
	Publish(ctx context.Context, alert domain.Alert)
}

// Port: latest known driver position.
type LocationStore interface {
	SetLatest(ctx context.Context, loc domain.LiveLocation) error
	// Return the latest location, or domain.ErrNotFound.
	Latest(ctx context.Context, driverID string) (*domain.LiveLocation, error)
}
