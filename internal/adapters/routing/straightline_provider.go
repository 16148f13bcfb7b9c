package routing

import (
	"context"
	"errors"
	"math"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/geo"
	"school-transport-service/internal/ports"
)

// StraightLineProvider is an offline RoutingProvider for local runs without
// a Maps API key. It orders waypoints with a greedy nearest-neighbor walk
// over great-circle distances and derives durations from a constant
// average speed.
//
// It does not attempt global route optimization; the walk is deterministic
// and favours simplicity over optimality.
type StraightLineProvider struct {
	metersPerSecond float64
}

func NewStraightLineProvider(averageSpeedKmh float64) (*StraightLineProvider, error) {
	if averageSpeedKmh <= 0 {
		return nil, errors.New("straight line provider: average speed must be positive")
	}
	return &StraightLineProvider{metersPerSecond: averageSpeedKmh * 1000 / 3600}, nil
}

func (s *StraightLineProvider) MultiStopRoute(
	ctx context.Context,
	req ports.MultiStopRequest,
) (ports.MultiStopResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.MultiStopResult{}, err
	}
	if len(req.Waypoints) == 0 {
		return ports.MultiStopResult{}, errors.New("multi-stop route: no waypoints")
	}

	order := make([]int, 0, len(req.Waypoints))
	if req.OptimizeOrder {
		order = s.nearestNeighborOrder(req.Origin, req.Waypoints)
	} else {
		for i := range req.Waypoints {
			order = append(order, i)
		}
	}

	path := make([]domain.GeoPoint, 0, len(order)+2)
	path = append(path, req.Origin)
	for _, idx := range order {
		path = append(path, req.Waypoints[idx])
	}
	path = append(path, req.Destination)

	legs := make([]ports.Leg, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		legs = append(legs, s.leg(path[i], path[i+1]))
	}

	return ports.MultiStopResult{
		Order:            order,
		Legs:             legs,
		OverviewGeometry: geo.EncodePolyline(path),
		Status:           ports.StatusOK,
	}, nil
}

func (s *StraightLineProvider) PointToPointETA(
	ctx context.Context,
	origin domain.GeoPoint,
	destination domain.GeoPoint,
) (ports.ETAResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.ETAResult{}, err
	}

	l := s.leg(origin, destination)
	return ports.ETAResult{
		DurationSeconds: l.DurationSeconds,
		DistanceMeters:  l.DistanceMeters,
		Status:          ports.StatusOK,
	}, nil
}

func (s *StraightLineProvider) leg(from, to domain.GeoPoint) ports.Leg {
	meters := geo.DistanceMeters(from, to)
	return ports.Leg{
		DistanceMeters:  roundInt(meters),
		DurationSeconds: roundInt(meters / s.metersPerSecond),
		StartLocation:   from,
		EndLocation:     to,
	}
}

// nearestNeighborOrder repeatedly visits the closest unvisited waypoint.
func (s *StraightLineProvider) nearestNeighborOrder(start domain.GeoPoint, waypoints []domain.GeoPoint) []int {
	visited := make([]bool, len(waypoints))
	order := make([]int, 0, len(waypoints))
	current := start

	for len(order) < len(waypoints) {
		best := -1
		bestDist := math.Inf(1)
		// Strict comparison keeps the lowest index on ties.
		for i, w := range waypoints {
			if visited[i] {
				continue
			}
			if d := geo.DistanceMeters(current, w); d < bestDist {
				best, bestDist = i, d
			}
		}

		visited[best] = true
		order = append(order, best)
		current = waypoints[best]
	}

	return order
}
