package services

import (
	"context"
	"fmt"
	"school-transport-service/internal/domain"
	"sort"
	"sync"
	"time"
)

type memRouteRepo struct {
	mu       sync.Mutex
	routes   map[string]*domain.OptimizedRoute
	getCalls int
}

func newMemRouteRepo() *memRouteRepo {
	return &memRouteRepo{routes: map[string]*domain.OptimizedRoute{}}
}

func (r *memRouteRepo) Save(ctx context.Context, route *domain.OptimizedRoute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, old := range r.routes {
		if old.DriverID == route.DriverID && old.SchoolID == route.SchoolID {
			old.Active = false
		}
	}
	route.Active = true
	cp := *route
	r.routes[route.ID] = &cp
	return nil
}

func (r *memRouteRepo) GetByID(ctx context.Context, id string) (*domain.OptimizedRoute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	route, ok := r.routes[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *route
	return &cp, nil
}

func (r *memRouteRepo) GetActive(ctx context.Context, driverID, schoolID string) (*domain.OptimizedRoute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	for _, route := range r.routes {
		if route.Active && route.DriverID == driverID && route.SchoolID == schoolID {
			cp := *route
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memPingRepo struct {
	mu        sync.Mutex
	pings     []*domain.LocationPing
	appendErr error
}

func (r *memPingRepo) Append(ctx context.Context, p *domain.LocationPing) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	p.ID = int64(len(r.pings) + 1)
	cp := *p
	r.pings = append(r.pings, &cp)
	return nil
}

func (r *memPingRepo) Latest(ctx context.Context, driverID string) (*domain.LocationPing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *domain.LocationPing
	for _, p := range r.pings {
		if p.DriverID == driverID && (latest == nil || p.ReceivedAt.After(latest.ReceivedAt)) {
			latest = p
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (r *memPingRepo) ListRange(ctx context.Context, driverID string, from, to time.Time) ([]*domain.LocationPing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.LocationPing
	for _, p := range r.pings {
		if p.DriverID == driverID && !p.ReceivedAt.Before(from) && p.ReceivedAt.Before(to) {
			out = append(out, p)
		}
	}
	return out, nil
}

type memAlertRepo struct {
	mu        sync.Mutex
	alerts    []*domain.Alert
	createErr error
}

func (r *memAlertRepo) Create(ctx context.Context, a *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *a
	r.alerts = append(r.alerts, &cp)
	return nil
}

func (r *memAlertRepo) ListByTypes(ctx context.Context, types []domain.AlertType, since time.Time, limit int) ([]*domain.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Alert
	for _, a := range r.alerts {
		if a.CreatedAt.Before(since) {
			continue
		}
		if len(types) > 0 {
			match := false
			for _, t := range types {
				match = match || a.Type == t
			}
			if !match {
				continue
			}
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAlertRepo) ofType(t domain.AlertType) []*domain.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Alert
	for _, a := range r.alerts {
		if a.Type == t {
			out = append(out, a)
		}
	}
	return out
}

type memTripRepo struct {
	mu       sync.Mutex
	trips    map[string]*domain.Trip
	getCalls int
}

func newMemTripRepo(trips ...*domain.Trip) *memTripRepo {
	r := &memTripRepo{trips: map[string]*domain.Trip{}}
	for _, t := range trips {
		r.trips[t.ID] = t
	}
	return r
}

func (r *memTripRepo) GetTrip(ctx context.Context, id string) (*domain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	t, ok := r.trips[id]
	if !ok {
		return nil, fmt.Errorf("trip %s: %w", id, domain.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (r *memTripRepo) ListActive(ctx context.Context) ([]*domain.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Trip
	for _, t := range r.trips {
		if t.Active() {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTripRepo) EndTrip(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trips[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Status = domain.TripCompleted
	return nil
}

type memLocationStore struct {
	mu   sync.Mutex
	locs map[string]domain.LiveLocation
}

func newMemLocationStore() *memLocationStore {
	return &memLocationStore{locs: map[string]domain.LiveLocation{}}
}

func (s *memLocationStore) SetLatest(ctx context.Context, loc domain.LiveLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locs[loc.DriverID] = loc
	return nil
}

func (s *memLocationStore) Latest(ctx context.Context, driverID string) (*domain.LiveLocation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc, ok := s.locs[driverID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &loc, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	alerts []domain.Alert
}

func (p *recordingPublisher) Publish(ctx context.Context, a domain.Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, a)
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newAlertService(repo *memAlertRepo, clk *clock) (*AlertService, *recordingPublisher) {
	pub := &recordingPublisher{}
	svc := NewAlertService(repo, pub)
	if clk != nil {
		svc.Now = clk.Now
	}
	return svc, pub
}
