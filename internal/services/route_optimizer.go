package services

import (
	"context"
	"errors"
	"fmt"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/ports"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OptimizeRequest struct {
	DriverID         string
	SchoolID         string
	Depot            domain.GeoPoint
	Stops            []domain.Stop
	ScheduledArrival time.Time
}

// RouteOptimizer turns a stop set into an ordered, scheduled route.
//
// Ordering is delegated to the routing provider (one round-trip request
// depot -> stops -> depot with order optimization). The optimizer composes
// the request, converts leg durations into absolute ETAs and packages the
// result. It never retries; retry policy belongs to the provider client.
type RouteOptimizer struct {
	Provider ports.RoutingProvider
	Geocoder ports.Geocoder
	Timeout  time.Duration
	Now      func() time.Time
}

func NewRouteOptimizer(provider ports.RoutingProvider, geocoder ports.Geocoder, timeout time.Duration) *RouteOptimizer {
	return &RouteOptimizer{Provider: provider, Geocoder: geocoder, Timeout: timeout, Now: time.Now}
}

func (o *RouteOptimizer) Optimize(ctx context.Context, req OptimizeRequest) (*domain.OptimizedRoute, error) {
	if err := validateOptimizeRequest(req); err != nil {
		return nil, fmt.Errorf("optimize route: %w", err)
	}

	stops, err := o.resolveStops(ctx, req.Stops)
	if err != nil {
		return nil, fmt.Errorf("optimize route: %w", err)
	}

	waypoints := make([]domain.GeoPoint, 0, len(stops))
	for _, s := range stops {
		waypoints = append(waypoints, *s.Location)
	}

	pctx, cancel := o.providerContext(ctx)
	defer cancel()

	res, err := o.Provider.MultiStopRoute(pctx, ports.MultiStopRequest{
		Origin:        req.Depot,
		Destination:   req.Depot,
		Waypoints:     waypoints,
		OptimizeOrder: true,
	})
	if err != nil {
		return nil, fmt.Errorf("optimize route: %w", providerError(err))
	}
	if res.Status != ports.StatusOK {
		return nil, fmt.Errorf("optimize route: %w: provider status %s", domain.ErrRouteComputation, res.Status)
	}
	if err := checkOrder(res.Order, len(stops)); err != nil {
		return nil, fmt.Errorf("optimize route: %w: %v", domain.ErrRouteComputation, err)
	}
	if len(res.Legs) != len(stops)+1 {
		return nil, fmt.Errorf(
			"optimize route: %w: got %d legs for %d stops",
			domain.ErrRouteComputation, len(res.Legs), len(stops),
		)
	}

	route := &domain.OptimizedRoute{
		ID:               uuid.NewString(),
		DriverID:         req.DriverID,
		SchoolID:         req.SchoolID,
		Depot:            req.Depot,
		StopOrder:        make([]string, 0, len(stops)),
		PerStopETA:       make([]domain.StopETA, 0, len(stops)),
		Geometry:         res.OverviewGeometry,
		ScheduledArrival: req.ScheduledArrival,
		GeneratedAt:      o.Now().UTC(),
	}

	for _, l := range res.Legs {
		if l.DurationSeconds < 0 || l.DistanceMeters < 0 {
			return nil, fmt.Errorf("optimize route: %w: negative leg metrics", domain.ErrRouteComputation)
		}
		route.TotalDurationSeconds += l.DurationSeconds
		route.TotalDistanceMeters += l.DistanceMeters
	}

	// Walk back from the depot arrival by the whole trip, then forward leg by
	// leg. Leg k arrives at the k-th stop; leg k+1 departs it.
	eta := req.ScheduledArrival.Add(-seconds(route.TotalDurationSeconds))
	for k, idx := range res.Order {
		eta = eta.Add(seconds(res.Legs[k].DurationSeconds))
		s := stops[idx]
		out := res.Legs[k+1]

		route.StopOrder = append(route.StopOrder, s.StudentID)
		route.PerStopETA = append(route.PerStopETA, domain.StopETA{
			StudentID:          s.StudentID,
			Location:           *s.Location,
			Address:            s.Address,
			EstimatedArrival:   eta,
			LegDurationSeconds: out.DurationSeconds,
			LegDistanceMeters:  out.DistanceMeters,
		})
	}

	return route, nil
}

func validateOptimizeRequest(req OptimizeRequest) error {
	if strings.TrimSpace(req.DriverID) == "" || strings.TrimSpace(req.SchoolID) == "" {
		return fmt.Errorf("%w: driver and school are required", domain.ErrInvalidInput)
	}
	if err := req.Depot.Validate(); err != nil {
		return fmt.Errorf("depot: %w", err)
	}
	if len(req.Stops) == 0 {
		return fmt.Errorf("%w: at least one stop is required", domain.ErrInvalidInput)
	}
	if req.ScheduledArrival.IsZero() {
		return fmt.Errorf("%w: scheduled arrival is required", domain.ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(req.Stops))
	for i, s := range req.Stops {
		id := strings.TrimSpace(s.StudentID)
		if id == "" {
			return fmt.Errorf("%w: stop %d has no student id", domain.ErrInvalidInput, i)
		}
		if _, ok := seen[id]; ok {
			return fmt.Errorf("%w: duplicate student %q", domain.ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// resolveStops returns a copy of stops where every stop has a validated
// location, geocoding addresses where needed.
func (o *RouteOptimizer) resolveStops(ctx context.Context, stops []domain.Stop) ([]domain.Stop, error) {
	out := make([]domain.Stop, 0, len(stops))
	for _, s := range stops {
		if s.Location == nil {
			p, err := o.geocode(ctx, s)
			if err != nil {
				return nil, err
			}
			s.Location = &p
		}

		loc := *s.Location
		if err := loc.Validate(); err != nil {
			return nil, fmt.Errorf("stop %q: %w", s.StudentID, err)
		}
		s.Location = &loc
		out = append(out, s)
	}
	return out, nil
}

func (o *RouteOptimizer) geocode(ctx context.Context, s domain.Stop) (domain.GeoPoint, error) {
	if strings.TrimSpace(s.Address) == "" || o.Geocoder == nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: stop %q has no resolvable location", domain.ErrInvalidInput, s.StudentID)
	}

	gctx, cancel := o.providerContext(ctx)
	defer cancel()

	p, err := o.Geocoder.Geocode(gctx, s.Address)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.GeoPoint{}, fmt.Errorf("%w: address of stop %q could not be resolved", domain.ErrInvalidInput, s.StudentID)
	}
	if err != nil {
		return domain.GeoPoint{}, fmt.Errorf("geocode stop %q: %w", s.StudentID, providerError(err))
	}
	return p, nil
}

func (o *RouteOptimizer) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.Timeout)
}

// providerError classifies a routing provider failure.
func providerError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrProviderTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrRouteComputation, err)
}

// checkOrder verifies order is a permutation of [0, n).
func checkOrder(order []int, n int) error {
	if len(order) != n {
		return fmt.Errorf("order has %d entries for %d stops", len(order), n)
	}
	seen := make([]bool, n)
	for _, idx := range order {
		if idx < 0 || idx >= n || seen[idx] {
			return fmt.Errorf("order %v is not a permutation", order)
		}
		seen[idx] = true
	}
	return nil
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }
