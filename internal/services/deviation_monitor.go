package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/geo"
	"school-transport-service/internal/ports"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// DefaultDeviationThresholdMeters is the distance from the planned route
// beyond which a vehicle is considered off-route.
const DefaultDeviationThresholdMeters = 500.0

type DeviationResult struct {
	Monitored      bool
	Deviated       bool
	DistanceMeters float64
	Expected       domain.GeoPoint
}

// tripGeometry is an immutable cache entry; readers share it without
// copying.
type tripGeometry struct {
	routeID  string
	driverID string
	schoolID string
	points   []domain.GeoPoint
}

// DeviationMonitor compares live positions against the active route of a
// trip. Decoded route geometry is cached per trip id with LRU eviction and
// a TTL; loads for the same trip are collapsed into one.
type DeviationMonitor struct {
	Trips           ports.TripRepository
	Routes          ports.RouteRepository
	Alerts          AlertRaiser
	ThresholdMeters float64
	VertexOnly      bool

	cache *expirable.LRU[string, *tripGeometry]
	group singleflight.Group
	// gen is bumped by every invalidation so that loads racing with it do
	// not repopulate the cache with a superseded route.
	gen atomic.Uint64
}

func NewDeviationMonitor(
	trips ports.TripRepository,
	routes ports.RouteRepository,
	alerts AlertRaiser,
	thresholdMeters float64,
	cacheSize int,
	cacheTTL time.Duration,
) *DeviationMonitor {
	if thresholdMeters <= 0 {
		thresholdMeters = DefaultDeviationThresholdMeters
	}
	return &DeviationMonitor{
		Trips:           trips,
		Routes:          routes,
		Alerts:          alerts,
		ThresholdMeters: thresholdMeters,
		cache:           expirable.NewLRU[string, *tripGeometry](cacheSize, nil, cacheTTL),
	}
}

// CheckDeviation measures the distance from location to the trip's route
// and raises a route_deviation alert when it exceeds the threshold. A trip
// without a route is unmonitored and never deviates.
func (m *DeviationMonitor) CheckDeviation(
	ctx context.Context,
	driverID string,
	location domain.GeoPoint,
	tripID string,
) (DeviationResult, error) {
	if err := location.Validate(); err != nil {
		return DeviationResult{}, fmt.Errorf("check deviation: %w", err)
	}

	g, err := m.geometry(ctx, tripID)
	if err != nil {
		return DeviationResult{}, fmt.Errorf("check deviation trip=%s: %w", tripID, err)
	}
	if g == nil {
		return DeviationResult{}, nil
	}

	var nearest geo.Nearest
	if m.VertexOnly {
		nearest = geo.NearestVertex(location, g.points)
	} else {
		nearest = geo.NearestPointOnPolyline(location, g.points)
	}

	res := DeviationResult{
		Monitored:      true,
		DistanceMeters: nearest.DistanceMeters,
		Expected:       nearest.Point,
	}
	if nearest.DistanceMeters <= m.ThresholdMeters {
		return res, nil
	}

	res.Deviated = true
	_, err = m.Alerts.Raise(ctx, domain.Alert{
		Type:     domain.AlertRouteDeviation,
		Severity: domain.SeverityWarning,
		DriverID: driverID,
		TripID:   tripID,
		Metadata: map[string]any{
			"currentLocation":  location,
			"deviation":        math.Round(nearest.DistanceMeters),
			"expectedLocation": nearest.Point,
			"routeId":          g.routeID,
		},
	})
	if err != nil {
		return res, fmt.Errorf("check deviation trip=%s: %w", tripID, err)
	}
	return res, nil
}

// geometry returns the cached geometry for tripID, loading it on a miss.
// A nil result means the trip is unmonitored; nothing is cached for it.
func (m *DeviationMonitor) geometry(ctx context.Context, tripID string) (*tripGeometry, error) {
	if g, ok := m.cache.Get(tripID); ok {
		return g, nil
	}

	v, err, _ := m.group.Do(tripID, func() (any, error) {
		gen := m.gen.Load()
		g, err := m.load(ctx, tripID)
		if err != nil || g == nil {
			return g, err
		}
		if m.gen.Load() == gen {
			m.cache.Add(tripID, g)
		}
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*tripGeometry), nil
}

func (m *DeviationMonitor) load(ctx context.Context, tripID string) (*tripGeometry, error) {
	trip, err := m.Trips.GetTrip(ctx, tripID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load trip: %w", err)
	}
	if !trip.Active() {
		return nil, nil
	}

	route, err := m.Routes.GetActive(ctx, trip.DriverID, trip.SchoolID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load route: %w", err)
	}

	points, err := geo.DecodePolyline(route.Geometry)
	if err != nil {
		return nil, fmt.Errorf("load route %s: %w", route.ID, err)
	}
	if len(points) == 0 {
		return nil, nil
	}

	return &tripGeometry{
		routeID:  route.ID,
		driverID: trip.DriverID,
		schoolID: trip.SchoolID,
		points:   points,
	}, nil
}

// InvalidateTrip drops the cached geometry of a trip, e.g. when it ends.
func (m *DeviationMonitor) InvalidateTrip(tripID string) {
	m.gen.Add(1)
	m.group.Forget(tripID)
	m.cache.Remove(tripID)
}

// InvalidateRoute drops cached geometry of every trip that follows the
// (driver, school) pair's route.
func (m *DeviationMonitor) InvalidateRoute(driverID, schoolID string) {
	m.gen.Add(1)
	for _, tripID := range m.cache.Keys() {
		g, ok := m.cache.Peek(tripID)
		if !ok || (g.driverID == driverID && g.schoolID == schoolID) {
			m.group.Forget(tripID)
			m.cache.Remove(tripID)
		}
	}
}
