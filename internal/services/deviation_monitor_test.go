package services

import (
	"context"
	"math"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/geo"
	"testing"
	"time"
)

type deviationFixture struct {
	monitor *DeviationMonitor
	trips   *memTripRepo
	routes  *memRouteRepo
	alerts  *memAlertRepo
}

func newDeviationFixture(t *testing.T, threshold float64) deviationFixture {
	t.Helper()

	f := deviationFixture{
		trips: newMemTripRepo(&domain.Trip{
			ID:       "trip-1",
			DriverID: "d1",
			SchoolID: "school",
			Status:   domain.TripInProgress,
		}),
		routes: newMemRouteRepo(),
		alerts: &memAlertRepo{},
	}
	err := f.routes.Save(context.Background(), &domain.OptimizedRoute{
		ID:       "route-1",
		DriverID: "d1",
		SchoolID: "school",
		Geometry: geo.EncodePolyline([]domain.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 10}}),
	})
	if err != nil {
		t.Fatalf("save route: %v", err)
	}

	alertSvc, _ := newAlertService(f.alerts, nil)
	f.monitor = NewDeviationMonitor(f.trips, f.routes, alertSvc, threshold, 16, time.Minute)
	return f
}

func TestCheckDeviationStraightRoute(t *testing.T) {
	f := newDeviationFixture(t, 500)
	ctx := context.Background()

	near, err := f.monitor.CheckDeviation(ctx, "d1", domain.GeoPoint{Lat: 0.001, Lng: 5}, "trip-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !near.Monitored || near.Deviated {
		t.Fatalf("near result = %+v, want monitored and on route", near)
	}

	far := domain.GeoPoint{Lat: 0.01, Lng: 5}
	res, err := f.monitor.CheckDeviation(ctx, "d1", far, "trip-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Deviated {
		t.Fatalf("far result = %+v, want deviated", res)
	}

	want := geo.DistanceMeters(far, domain.GeoPoint{Lat: 0, Lng: 5})
	if math.Abs(res.DistanceMeters-want) > want*0.01 {
		t.Fatalf("deviation = %.1f, want %.1f within 1%%", res.DistanceMeters, want)
	}

	alerts := f.alerts.ofType(domain.AlertRouteDeviation)
	if len(alerts) != 1 {
		t.Fatalf("deviation alerts = %d, want 1", len(alerts))
	}
	md := alerts[0].Metadata
	if md["routeId"] != "route-1" || md["currentLocation"] != far {
		t.Fatalf("metadata = %+v", md)
	}
	if md["deviation"] != math.Round(res.DistanceMeters) {
		t.Fatalf("metadata deviation = %v, want %v", md["deviation"], math.Round(res.DistanceMeters))
	}
	if alerts[0].TripID != "trip-1" || alerts[0].DriverID != "d1" {
		t.Fatalf("alert = %+v", alerts[0])
	}
}

func TestCheckDeviationThresholdIsExclusive(t *testing.T) {
	loc := domain.GeoPoint{Lat: 0.004, Lng: 3}
	measure := newDeviationFixture(t, 500)
	base, err := measure.monitor.CheckDeviation(context.Background(), "d1", loc, "trip-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := base.DistanceMeters

	tests := []struct {
		name      string
		threshold float64
		want      bool
	}{
		{"equal to distance", d, false},
		{"just below distance", d - 0.01, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDeviationFixture(t, tt.threshold)
			res, err := f.monitor.CheckDeviation(context.Background(), "d1", loc, "trip-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Deviated != tt.want {
				t.Fatalf("deviated = %v, want %v (d=%.3f)", res.Deviated, tt.want, d)
			}
		})
	}
}

func TestCheckDeviationUnmonitoredTrips(t *testing.T) {
	f := newDeviationFixture(t, 500)
	f.trips.trips["no-route"] = &domain.Trip{ID: "no-route", DriverID: "d2", SchoolID: "school", Status: domain.TripScheduled}
	f.trips.trips["done"] = &domain.Trip{ID: "done", DriverID: "d1", SchoolID: "school", Status: domain.TripCompleted}

	far := domain.GeoPoint{Lat: 45, Lng: 45}
	for _, tripID := range []string{"missing", "no-route", "done"} {
		res, err := f.monitor.CheckDeviation(context.Background(), "d1", far, tripID)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tripID, err)
		}
		if res.Monitored || res.Deviated {
			t.Fatalf("%s: result = %+v, want unmonitored", tripID, res)
		}
	}
	if n := len(f.alerts.alerts); n != 0 {
		t.Fatalf("alerts = %d, want 0", n)
	}
}

func TestCheckDeviationCachesGeometry(t *testing.T) {
	f := newDeviationFixture(t, 500)
	ctx := context.Background()
	loc := domain.GeoPoint{Lat: 0.001, Lng: 5}

	for i := 0; i < 3; i++ {
		if _, err := f.monitor.CheckDeviation(ctx, "d1", loc, "trip-1"); err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
	}
	if f.trips.getCalls != 1 || f.routes.getCalls != 1 {
		t.Fatalf("loads: trips=%d routes=%d, want 1 each", f.trips.getCalls, f.routes.getCalls)
	}

	f.monitor.InvalidateTrip("trip-1")
	if _, err := f.monitor.CheckDeviation(ctx, "d1", loc, "trip-1"); err != nil {
		t.Fatalf("check after trip invalidation: %v", err)
	}
	if f.routes.getCalls != 2 {
		t.Fatalf("route loads = %d, want 2", f.routes.getCalls)
	}

	// A regenerated route must be picked up on the next check.
	err := f.routes.Save(ctx, &domain.OptimizedRoute{
		ID:       "route-2",
		DriverID: "d1",
		SchoolID: "school",
		Geometry: geo.EncodePolyline([]domain.GeoPoint{{Lat: 1, Lng: 0}, {Lat: 1, Lng: 10}}),
	})
	if err != nil {
		t.Fatalf("save route: %v", err)
	}
	f.monitor.InvalidateRoute("d1", "school")

	res, err := f.monitor.CheckDeviation(ctx, "d1", loc, "trip-1")
	if err != nil {
		t.Fatalf("check after route invalidation: %v", err)
	}
	if !res.Deviated {
		t.Fatalf("result = %+v, want deviation from the new route", res)
	}
	if got := f.alerts.ofType(domain.AlertRouteDeviation)[0].Metadata["routeId"]; got != "route-2" {
		t.Fatalf("routeId = %v, want route-2", got)
	}
}

func TestCheckDeviationVertexOnly(t *testing.T) {
	f := newDeviationFixture(t, 500)
	f.monitor.VertexOnly = true

	res, err := f.monitor.CheckDeviation(context.Background(), "d1", domain.GeoPoint{Lat: 0.001, Lng: 5}, "trip-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Deviated {
		t.Fatalf("result = %+v, want deviated when measuring to vertices", res)
	}
	if res.Expected != (domain.GeoPoint{Lat: 0, Lng: 0}) && res.Expected != (domain.GeoPoint{Lat: 0, Lng: 10}) {
		t.Fatalf("expected = %+v, want a route vertex", res.Expected)
	}
}
