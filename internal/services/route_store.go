package services

import (
	"context"
	"errors"
	"fmt"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/ports"
	"time"
)

// DefaultRouteStaleAfter bounds drift against real-world traffic and address
// changes without regenerating on every request.
const DefaultRouteStaleAfter = 24 * time.Hour

// RouteStore owns stored routes and the regeneration policy.
type RouteStore struct {
	Repo       ports.RouteRepository
	StaleAfter time.Duration
	Now        func() time.Time
}

func NewRouteStore(repo ports.RouteRepository, staleAfter time.Duration) *RouteStore {
	if staleAfter <= 0 {
		staleAfter = DefaultRouteStaleAfter
	}
	return &RouteStore{Repo: repo, StaleAfter: staleAfter, Now: time.Now}
}

// Save persists route as the active route for its (driver, school) pair.
func (s *RouteStore) Save(ctx context.Context, route *domain.OptimizedRoute) error {
	if route == nil {
		return fmt.Errorf("save route: %w: route is nil", domain.ErrInvalidInput)
	}
	if err := s.Repo.Save(ctx, route); err != nil {
		return fmt.Errorf("save route: %w", err)
	}
	return nil
}

// GetActive returns the active route for the pair, or nil when there is none.
func (s *RouteStore) GetActive(ctx context.Context, driverID, schoolID string) (*domain.OptimizedRoute, error) {
	route, err := s.Repo.GetActive(ctx, driverID, schoolID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active route: %w", err)
	}
	return route, nil
}

// NeedsRegeneration reports true when the route does not exist or was
// generated more than StaleAfter ago.
func (s *RouteStore) NeedsRegeneration(ctx context.Context, routeID string) (bool, error) {
	route, err := s.Repo.GetByID(ctx, routeID)
	if errors.Is(err, domain.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("needs regeneration: %w", err)
	}
	return s.IsStale(route), nil
}

func (s *RouteStore) IsStale(route *domain.OptimizedRoute) bool {
	return s.Now().Sub(route.GeneratedAt) > s.StaleAfter
}
