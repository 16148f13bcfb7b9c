package locationstore

import (
	"context"
	"fmt"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/ports"
	"time"
)

// PingLocationStore answers location reads from the ping log. It is used
// when no Redis is configured; writes are no-ops since the ping is already
// persisted.
//
// Pings older than TTL are treated as unknown, matching the expiry of the
// Redis store.
type PingLocationStore struct {
	Pings ports.PingRepository
	TTL   time.Duration
	Now   func() time.Time
}

func NewPingLocationStore(pings ports.PingRepository, ttl time.Duration) *PingLocationStore {
	return &PingLocationStore{Pings: pings, TTL: ttl, Now: time.Now}
}

func (s *PingLocationStore) SetLatest(ctx context.Context, loc domain.LiveLocation) error {
	return nil
}

func (s *PingLocationStore) Latest(ctx context.Context, driverID string) (*domain.LiveLocation, error) {
	p, err := s.Pings.Latest(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("latest location driver=%s: %w", driverID, err)
	}

	if s.TTL > 0 && s.Now().Sub(p.ReceivedAt) > s.TTL {
		return nil, fmt.Errorf("latest location driver=%s: last ping at %s expired: %w",
			driverID, p.ReceivedAt.Format(time.RFC3339), domain.ErrNotFound)
	}

	return &domain.LiveLocation{DriverID: p.DriverID, Location: p.Location, At: p.ReceivedAt}, nil
}
