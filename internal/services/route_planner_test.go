package services

import (
	"context"
	"errors"
	"school-transport-service/internal/adapters/routing"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/ports"
	"testing"
	"time"
)

type recordingInvalidator struct {
	pairs []string
	trips []string
}

func (r *recordingInvalidator) InvalidateRoute(driverID, schoolID string) {
	r.pairs = append(r.pairs, driverID+"|"+schoolID)
}

func (r *recordingInvalidator) InvalidateTrip(tripID string) {
	r.trips = append(r.trips, tripID)
}

func newTestPlanner(clk *clock, provider ports.RoutingProvider) (*RoutePlanner, *memRouteRepo, *recordingInvalidator) {
	repo := newMemRouteRepo()
	opt := NewRouteOptimizer(provider, nil, time.Second)
	opt.Now = clk.Now
	store := NewRouteStore(repo, 24*time.Hour)
	store.Now = clk.Now
	inv := &recordingInvalidator{}
	return NewRoutePlanner(opt, store, inv), repo, inv
}

func planRequest(arrival time.Time) OptimizeRequest {
	return OptimizeRequest{
		DriverID: "d1",
		SchoolID: "school",
		Depot:    domain.GeoPoint{Lat: 33, Lng: -112},
		Stops: []domain.Stop{
			{StudentID: "a", Location: pt(33.01, -112)},
			{StudentID: "b", Location: pt(33.02, -112)},
		},
		ScheduledArrival: arrival,
	}
}

func okProvider() *routing.MockRoutingProvider {
	return &routing.MockRoutingProvider{
		Route: ports.MultiStopResult{Order: []int{0, 1}, Legs: legs(300, 300, 600), OverviewGeometry: "??", Status: ports.StatusOK},
	}
}

func TestRoutePlannerGenerate(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)}
	planner, repo, inv := newTestPlanner(clk, okProvider())

	route, err := planner.Generate(context.Background(), planRequest(clk.now.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, err := repo.GetByID(context.Background(), route.ID)
	if err != nil || !stored.Active {
		t.Fatalf("stored route = %+v, %v", stored, err)
	}
	if len(inv.pairs) != 1 || inv.pairs[0] != "d1|school" {
		t.Fatalf("invalidated = %v, want [d1|school]", inv.pairs)
	}
}

func TestRoutePlannerGetRouteRegeneratesStaleRoute(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)}
	provider := okProvider()
	planner, _, _ := newTestPlanner(clk, provider)
	ctx := context.Background()

	first, err := planner.Generate(ctx, planRequest(clk.now.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	got, regenerated, err := planner.GetRoute(ctx, "d1", "school")
	if err != nil || regenerated || got.ID != first.ID {
		t.Fatalf("fresh GetRoute = %v, %v, %v", got.ID, regenerated, err)
	}

	clk.Set(clk.now.Add(25 * time.Hour))
	got, regenerated, err = planner.GetRoute(ctx, "d1", "school")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !regenerated || got.ID == first.ID {
		t.Fatalf("stale route not regenerated: id=%s regenerated=%v", got.ID, regenerated)
	}
	if len(provider.Requests) != 2 || len(provider.Requests[1].Waypoints) != 2 {
		t.Fatalf("provider requests = %d", len(provider.Requests))
	}
	// Same time of day, next day.
	if want := first.ScheduledArrival.AddDate(0, 0, 1); !got.ScheduledArrival.Equal(want) {
		t.Fatalf("scheduled arrival = %v, want %v", got.ScheduledArrival, want)
	}
}

func TestRoutePlannerServesStaleRouteWhenRegenerationFails(t *testing.T) {
	clk := &clock{now: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)}
	provider := okProvider()
	planner, _, _ := newTestPlanner(clk, provider)
	ctx := context.Background()

	first, err := planner.Generate(ctx, planRequest(clk.now.Add(2*time.Hour)))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	provider.RouteErr = errors.New("provider down")
	clk.Set(clk.now.Add(48 * time.Hour))

	got, regenerated, err := planner.GetRoute(ctx, "d1", "school")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if regenerated || got.ID != first.ID {
		t.Fatalf("got %s regenerated=%v, want stale %s", got.ID, regenerated, first.ID)
	}
}

func TestRoutePlannerGetRouteNotFound(t *testing.T) {
	clk := &clock{now: time.Now()}
	planner, _, _ := newTestPlanner(clk, okProvider())

	_, _, err := planner.GetRoute(context.Background(), "d1", "school")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestNextOccurrence(t *testing.T) {
	now := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)

	future := now.Add(time.Hour)
	if got := nextOccurrence(future, now); !got.Equal(future) {
		t.Fatalf("future = %v, want unchanged", got)
	}

	past := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	if got, want := nextOccurrence(past, now), time.Date(2026, 3, 6, 8, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("past = %v, want %v", got, want)
	}
}
