package services

import (
	"context"
	"fmt"
	"log"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/platform/obs"
	"time"
)

// RouteInvalidator drops cached geometry for routes that were replaced.
type RouteInvalidator interface {
	InvalidateRoute(driverID, schoolID string)
}

// RoutePlanner is the route controller: it generates, stores and serves
// routes, regenerating stale ones on read.
type RoutePlanner struct {
	Optimizer   *RouteOptimizer
	Store       *RouteStore
	Invalidator RouteInvalidator
}

func NewRoutePlanner(optimizer *RouteOptimizer, store *RouteStore, invalidator RouteInvalidator) *RoutePlanner {
	return &RoutePlanner{Optimizer: optimizer, Store: store, Invalidator: invalidator}
}

// Generate optimizes and stores a new route, superseding the pair's
// previous active route.
func (p *RoutePlanner) Generate(ctx context.Context, req OptimizeRequest) (_ *domain.OptimizedRoute, err error) {
	defer obs.Time(ctx, "routes.Generate")(&err)

	route, err := p.Optimizer.Optimize(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := p.Store.Save(ctx, route); err != nil {
		return nil, fmt.Errorf("generate route: %w", err)
	}

	if p.Invalidator != nil {
		p.Invalidator.InvalidateRoute(route.DriverID, route.SchoolID)
	}

	return route, nil
}

// GetRoute returns the active route for the pair. A stale route is
// regenerated from its stored stops; when regeneration fails the stale
// route is served and the failure logged.
func (p *RoutePlanner) GetRoute(ctx context.Context, driverID, schoolID string) (*domain.OptimizedRoute, bool, error) {
	route, err := p.Store.GetActive(ctx, driverID, schoolID)
	if err != nil {
		return nil, false, fmt.Errorf("get route: %w", err)
	}
	if route == nil {
		return nil, false, fmt.Errorf("get route driver=%s school=%s: %w", driverID, schoolID, domain.ErrNotFound)
	}

	stale, err := p.Store.NeedsRegeneration(ctx, route.ID)
	if err != nil {
		return nil, false, fmt.Errorf("get route: %w", err)
	}
	if !stale {
		return route, false, nil
	}

	fresh, err := p.Generate(ctx, OptimizeRequest{
		DriverID:         route.DriverID,
		SchoolID:         route.SchoolID,
		Depot:            route.Depot,
		Stops:            route.Stops(),
		ScheduledArrival: nextOccurrence(route.ScheduledArrival, p.Store.Now()),
	})
	if err != nil {
		log.Printf("route regeneration failed: route_id=%s driver=%s school=%s err=%v", route.ID, driverID, schoolID, err)
		return route, false, nil
	}

	return fresh, true, nil
}

// nextOccurrence moves t forward by whole days until it is after now, so a
// daily schedule keeps its time of day.
func nextOccurrence(t, now time.Time) time.Time {
	if t.After(now) {
		return t
	}
	days := int(now.Sub(t)/(24*time.Hour)) + 1
	return t.AddDate(0, 0, days)
}
