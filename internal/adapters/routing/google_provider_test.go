package routing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/ports"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestProvider(t *testing.T, h http.HandlerFunc, opts ...Option) *GoogleMapsProvider {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]Option{WithBaseURL(srv.URL), WithRetry(3, time.Millisecond)}, opts...)
	p, err := NewGoogleMapsProvider("test-key", opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestNewGoogleMapsProviderRequiresKey(t *testing.T) {
	if _, err := NewGoogleMapsProvider("  "); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestMultiStopRoute(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/maps/api/directions/json" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("key") != "test-key" {
			t.Errorf("key = %q", q.Get("key"))
		}
		if !strings.HasPrefix(q.Get("waypoints"), "optimize:true|") {
			t.Errorf("waypoints = %q", q.Get("waypoints"))
		}
		w.Write([]byte(`{
			"status": "OK",
			"routes": [{
				"waypoint_order": [1, 0],
				"overview_polyline": {"points": "_p~iF~ps|U"},
				"legs": [
					{"distance": {"value": 1000}, "duration": {"value": 600.4}, "start_location": {"lat": 0, "lng": 0}, "end_location": {"lat": 0, "lng": 2}},
					{"distance": {"value": 1100}, "duration": {"value": 900}, "start_location": {"lat": 0, "lng": 2}, "end_location": {"lat": 0, "lng": 1}},
					{"distance": {"value": 1200}, "duration": {"value": 300}, "start_location": {"lat": 0, "lng": 1}, "end_location": {"lat": 0, "lng": 0}}
				]
			}]
		}`))
	})

	res, err := p.MultiStopRoute(context.Background(), ports.MultiStopRequest{
		Origin:        domain.GeoPoint{},
		Destination:   domain.GeoPoint{},
		Waypoints:     []domain.GeoPoint{{Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}},
		OptimizeOrder: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Status != ports.StatusOK {
		t.Fatalf("status = %q, want OK", res.Status)
	}
	if len(res.Order) != 2 || res.Order[0] != 1 || res.Order[1] != 0 {
		t.Fatalf("order = %v, want [1 0]", res.Order)
	}
	if len(res.Legs) != 3 {
		t.Fatalf("legs = %d, want 3", len(res.Legs))
	}
	if res.Legs[0].DurationSeconds != 600 {
		t.Fatalf("leg duration = %d, want 600", res.Legs[0].DurationSeconds)
	}
	if res.Legs[1].EndLocation != (domain.GeoPoint{Lat: 0, Lng: 1}) {
		t.Fatalf("end location = %v", res.Legs[1].EndLocation)
	}
	if res.OverviewGeometry != "_p~iF~ps|U" {
		t.Fatalf("geometry = %q", res.OverviewGeometry)
	}
}

func TestMultiStopRouteProviderStatus(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ZERO_RESULTS", "routes": []}`))
	})

	res, err := p.MultiStopRoute(context.Background(), ports.MultiStopRequest{
		Waypoints: []domain.GeoPoint{{Lat: 1, Lng: 1}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != "ZERO_RESULTS" {
		t.Fatalf("status = %q, want ZERO_RESULTS", res.Status)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"status": "OK", "rows": [{"elements": [{"status": "OK", "distance": {"value": 5000}, "duration": {"value": 600}}]}]}`))
	})

	res, err := p.PointToPointETA(context.Background(), domain.GeoPoint{}, domain.GeoPoint{Lat: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if res.DurationSeconds != 600 || res.DistanceMeters != 5000 {
		t.Fatalf("result = %+v", res)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "denied", http.StatusForbidden)
	})

	_, err := p.PointToPointETA(context.Background(), domain.GeoPoint{}, domain.GeoPoint{Lat: 1})
	var he *httpStatusError
	if !errors.As(err, &he) || he.Code != http.StatusForbidden {
		t.Fatalf("err = %v, want 403 httpStatusError", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestPointToPointETAPrefersTraffic(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("departure_time") != "now" {
			t.Errorf("departure_time = %q", r.URL.Query().Get("departure_time"))
		}
		w.Write([]byte(`{"status": "OK", "rows": [{"elements": [{"status": "OK", "distance": {"value": 5000}, "duration": {"value": 600}, "duration_in_traffic": {"value": 840}}]}]}`))
	})

	res, err := p.PointToPointETA(context.Background(), domain.GeoPoint{}, domain.GeoPoint{Lat: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.DurationSeconds != 840 {
		t.Fatalf("duration = %d, want 840", res.DurationSeconds)
	}
}

func TestPointToPointETAContextDeadline(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := p.PointToPointETA(ctx, domain.GeoPoint{}, domain.GeoPoint{Lat: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context.DeadlineExceeded", err)
	}
}

type memGeocodeCache struct {
	m    map[string]domain.GeoPoint
	puts int
}

func (c *memGeocodeCache) GetMany(ctx context.Context, addresses []string) (map[string]domain.GeoPoint, error) {
	out := map[string]domain.GeoPoint{}
	for _, a := range addresses {
		if p, ok := c.m[a]; ok {
			out[a] = p
		}
	}
	return out, nil
}

func (c *memGeocodeCache) PutMany(ctx context.Context, results map[string]domain.GeoPoint) error {
	for k, v := range results {
		c.m[k] = v
	}
	c.puts++
	return nil
}

func TestGeocodeUsesCache(t *testing.T) {
	var calls atomic.Int32
	cache := &memGeocodeCache{m: map[string]domain.GeoPoint{}}
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if got := r.URL.Query().Get("address"); got != "1 Main St, Phoenix" {
			t.Errorf("address = %q", got)
		}
		w.Write([]byte(`{"status": "OK", "results": [{"geometry": {"location": {"lat": 33.4, "lng": -112.1}}}]}`))
	}, WithGeocodeCache(cache))

	for i := 0; i < 2; i++ {
		got, err := p.Geocode(context.Background(), "  1 Main St,   Phoenix ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != (domain.GeoPoint{Lat: 33.4, Lng: -112.1}) {
			t.Fatalf("point = %v", got)
		}
	}

	if calls.Load() != 1 {
		t.Fatalf("provider calls = %d, want 1", calls.Load())
	}
	if cache.puts != 1 {
		t.Fatalf("cache puts = %d, want 1", cache.puts)
	}
}

func TestGeocodeZeroResults(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	})

	_, err := p.Geocode(context.Background(), "nowhere")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
