package routing

import (
	"context"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/ports"
	"sync"
	"time"
)

// MockRoutingProvider returns canned results. When Delay is set, calls block
// until the delay elapses or the context is done.
type MockRoutingProvider struct {
	Route    ports.MultiStopResult
	RouteErr error
	ETA      ports.ETAResult
	ETAErr   error
	Delay    time.Duration

	mu       sync.Mutex
	Requests []ports.MultiStopRequest
	ETACalls int
}

func (m *MockRoutingProvider) wait(ctx context.Context) error {
	if m.Delay <= 0 {
		return nil
	}
	t := time.NewTimer(m.Delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (m *MockRoutingProvider) MultiStopRoute(ctx context.Context, req ports.MultiStopRequest) (ports.MultiStopResult, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return ports.MultiStopResult{}, err
	}
	if m.RouteErr != nil {
		return ports.MultiStopResult{}, m.RouteErr
	}
	return m.Route, nil
}

func (m *MockRoutingProvider) PointToPointETA(ctx context.Context, origin, destination domain.GeoPoint) (ports.ETAResult, error) {
	m.mu.Lock()
	m.ETACalls++
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return ports.ETAResult{}, err
	}
	if m.ETAErr != nil {
		return ports.ETAResult{}, m.ETAErr
	}
	return m.ETA, nil
}

// MockGeocoder resolves addresses from a fixed table.
type MockGeocoder struct {
	Points map[string]domain.GeoPoint
}

func (m *MockGeocoder) Geocode(ctx context.Context, address string) (domain.GeoPoint, error) {
	p, ok := m.Points[normalize(address)]
	if !ok {
		return domain.GeoPoint{}, domain.ErrNotFound
	}
	return p, nil
}
