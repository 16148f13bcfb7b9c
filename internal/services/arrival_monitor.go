package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/platform/obs"
	"school-transport-service/internal/ports"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// DefaultLateGrace is how far past the scheduled time an ETA may fall
// before a trip counts as late.
const DefaultLateGrace = 10 * time.Minute

// lateAlertMemory bounds how many trips are remembered as already alerted.
const lateAlertMemory = 10000

// AlertRaised is false when the trip is late but was already alerted for
// the current late episode.
type LateResult struct {
	Late         bool
	AlertRaised  bool
	DelayMinutes int
	ETA          time.Time
	ScheduledAt  time.Time
}

// TripInvalidator drops per-trip cached state when a trip ends.
type TripInvalidator interface {
	InvalidateTrip(tripID string)
}

// ArrivalMonitor re-estimates arrival from a driver's live position and
// flags trips that will miss their schedule.
//
// A trip raises one late_arrival alert per late episode: repeated checks
// stay silent until the trip is back within grace or ends.
type ArrivalMonitor struct {
	Trips       ports.TripRepository
	Locations   ports.LocationStore
	Provider    ports.RoutingProvider
	Alerts      AlertRaiser
	Invalidator TripInvalidator
	Grace       time.Duration
	Timeout     time.Duration
	Concurrency int
	Now         func() time.Time

	alerted *lru.Cache[string, struct{}]
}

func NewArrivalMonitor(
	trips ports.TripRepository,
	locations ports.LocationStore,
	provider ports.RoutingProvider,
	alerts AlertRaiser,
	invalidator TripInvalidator,
	grace time.Duration,
	timeout time.Duration,
) *ArrivalMonitor {
	// lru.New only fails for a non-positive size.
	alerted, _ := lru.New[string, struct{}](lateAlertMemory)

	return &ArrivalMonitor{
		Trips:       trips,
		Locations:   locations,
		Provider:    provider,
		Alerts:      alerts,
		Invalidator: invalidator,
		Grace:       grace,
		Timeout:     timeout,
		Concurrency: 8,
		Now:         time.Now,
		alerted:     alerted,
	}
}

// CheckLateArrival reports a trip late when the ETA from the driver's
// current location is past the scheduled time plus Grace, and raises a
// late_arrival alert on the first such check of a late episode. A missing
// trip, a finished trip or an unknown driver location yield {Late: false}
// without error.
func (m *ArrivalMonitor) CheckLateArrival(ctx context.Context, tripID string) (_ LateResult, err error) {
	defer obs.Time(ctx, "arrival.CheckLateArrival")(&err)

	trip, err := m.Trips.GetTrip(ctx, tripID)
	if errors.Is(err, domain.ErrNotFound) {
		return LateResult{}, nil
	}
	if err != nil {
		return LateResult{}, fmt.Errorf("check late arrival trip=%s: %w", tripID, err)
	}
	if !trip.Active() {
		return LateResult{}, nil
	}

	loc, err := m.Locations.Latest(ctx, trip.DriverID)
	if errors.Is(err, domain.ErrNotFound) {
		return LateResult{}, nil
	}
	if err != nil {
		return LateResult{}, fmt.Errorf("check late arrival trip=%s: %w", tripID, err)
	}

	pctx := ctx
	if m.Timeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, m.Timeout)
		defer cancel()
	}

	est, err := m.Provider.PointToPointETA(pctx, loc.Location, trip.Destination)
	if err != nil {
		return LateResult{}, fmt.Errorf("check late arrival trip=%s: %w", tripID, providerError(err))
	}
	if est.Status != ports.StatusOK {
		return LateResult{}, fmt.Errorf(
			"check late arrival trip=%s: %w: provider status %s",
			tripID, domain.ErrRouteComputation, est.Status,
		)
	}

	eta := m.Now().UTC().Add(seconds(est.DurationSeconds))
	res := LateResult{
		ETA:          eta,
		ScheduledAt:  trip.ScheduledAt,
		DelayMinutes: int(math.Round(eta.Sub(trip.ScheduledAt).Minutes())),
	}
	if res.DelayMinutes < 0 {
		res.DelayMinutes = 0
	}

	if !eta.After(trip.ScheduledAt.Add(m.Grace)) {
		m.alerted.Remove(trip.ID)
		return res, nil
	}

	res.Late = true
	if seen, _ := m.alerted.ContainsOrAdd(trip.ID, struct{}{}); seen {
		return res, nil
	}

	_, err = m.Alerts.Raise(ctx, domain.Alert{
		Type:     domain.AlertLateArrival,
		Severity: domain.SeverityWarning,
		DriverID: trip.DriverID,
		TripID:   trip.ID,
		Metadata: map[string]any{
			"eta":           eta,
			"scheduledTime": trip.ScheduledAt,
			"delay":         res.DelayMinutes,
		},
	})
	if err != nil {
		m.alerted.Remove(trip.ID)
		return res, fmt.Errorf("check late arrival trip=%s: %w", tripID, err)
	}
	res.AlertRaised = true
	return res, nil
}

// CheckActiveTrips checks every active trip with bounded concurrency and
// returns the number of late trips. Per-trip failures are logged and do not
// stop the sweep.
func (m *ArrivalMonitor) CheckActiveTrips(ctx context.Context) (int, error) {
	trips, err := m.Trips.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("check active trips: %w", err)
	}

	limit := m.Concurrency
	if limit <= 0 {
		limit = 1
	}

	results := make([]bool, len(trips))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, t := range trips {
		g.Go(func() error {
			res, err := m.CheckLateArrival(gctx, t.ID)
			if err != nil {
				log.Printf("late arrival check failed: trip=%s err=%v", t.ID, err)
				return nil
			}
			results[i] = res.Late
			return nil
		})
	}
	_ = g.Wait()

	late := 0
	for _, l := range results {
		if l {
			late++
		}
	}
	return late, nil
}

// Run sweeps active trips every interval until ctx is done.
func (m *ArrivalMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			late, err := m.CheckActiveTrips(ctx)
			if err != nil {
				log.Printf("arrival sweep failed: %v", err)
				continue
			}
			log.Printf("arrival sweep complete: late=%d", late)
		}
	}
}

// EndTrip marks a trip completed and stops monitoring it.
func (m *ArrivalMonitor) EndTrip(ctx context.Context, tripID string) error {
	if err := m.Trips.EndTrip(ctx, tripID); err != nil {
		return fmt.Errorf("end trip: %w", err)
	}
	m.alerted.Remove(tripID)
	if m.Invalidator != nil {
		m.Invalidator.InvalidateTrip(tripID)
	}
	return nil
}
