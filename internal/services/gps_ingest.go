package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/ports"
	"sort"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultGPSTimeout is the silence after which a resumed driver triggers a
// no_gps alert.
const DefaultGPSTimeout = 5 * time.Minute

// MaxDeviceClockSkew is how far ahead of the server a device timestamp may
// run before the ping is rejected.
const MaxDeviceClockSkew = time.Minute

// DeviationChecker is the slice of DeviationMonitor that ingestion drives.
type DeviationChecker interface {
	CheckDeviation(ctx context.Context, driverID string, location domain.GeoPoint, tripID string) (DeviationResult, error)
}

type IngestResult struct {
	PingID     int64
	ReceivedAt time.Time
	NoGPSAlert *domain.Alert
	OutOfOrder bool
	Deviation  *DeviationResult
}

// GPSIngest records driver pings and detects GPS silence.
//
// Live state is kept in a bounded LRU and rebuilt from the ping log on a
// miss. All state transitions for one driver run under that driver's lock,
// so a ping handled late can never reset the silence clock.
type GPSIngest struct {
	Pings     ports.PingRepository
	Locations ports.LocationStore
	Alerts    AlertRaiser
	Deviation DeviationChecker
	Timeout   time.Duration
	Now       func() time.Time

	states *lru.Cache[string, domain.DriverLiveState]
	locks  keyedMutex
}

func NewGPSIngest(
	pings ports.PingRepository,
	locations ports.LocationStore,
	alerts AlertRaiser,
	deviation DeviationChecker,
	timeout time.Duration,
	stateSize int,
) (*GPSIngest, error) {
	if timeout <= 0 {
		timeout = DefaultGPSTimeout
	}
	states, err := lru.New[string, domain.DriverLiveState](stateSize)
	if err != nil {
		return nil, fmt.Errorf("gps ingest: live state cache: %w", err)
	}

	return &GPSIngest{
		Pings:     pings,
		Locations: locations,
		Alerts:    alerts,
		Deviation: deviation,
		Timeout:   timeout,
		Now:       time.Now,
		states:    states,
	}, nil
}

// Ingest appends ping to the log, updates the driver's live state, raises a
// no_gps alert when the driver resumes after a silence longer than Timeout
// and, for pings on a trip, runs the deviation check.
//
// ReceivedAt is overwritten with the server clock; silence and ordering are
// never measured on device time.
func (g *GPSIngest) Ingest(ctx context.Context, ping domain.LocationPing) (IngestResult, error) {
	if strings.TrimSpace(ping.DriverID) == "" {
		return IngestResult{}, fmt.Errorf("ingest ping: %w: driver id is required", domain.ErrInvalidInput)
	}
	if err := ping.Location.Validate(); err != nil {
		return IngestResult{}, fmt.Errorf("ingest ping: %w", err)
	}

	if ping.RecordedAt != nil {
		if ping.RecordedAt.After(g.Now().Add(MaxDeviceClockSkew)) {
			return IngestResult{}, fmt.Errorf("ingest ping: %w: recorded_at %s is in the future",
				domain.ErrInvalidInput, ping.RecordedAt.UTC().Format(time.RFC3339))
		}
		recorded := ping.RecordedAt.UTC()
		ping.RecordedAt = &recorded
	}

	unlock := g.locks.Lock(ping.DriverID)
	defer unlock()

	// Stamped under the lock so stamps follow processing order per driver.
	ping.ReceivedAt = g.Now().UTC()

	prev, hasPrev, err := g.liveState(ctx, ping.DriverID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("ingest ping: %w", err)
	}

	if err := g.Pings.Append(ctx, &ping); err != nil {
		return IngestResult{}, fmt.Errorf("ingest ping: %w", err)
	}
	res := IngestResult{PingID: ping.ID, ReceivedAt: ping.ReceivedAt}

	if hasPrev && ping.ReceivedAt.Before(prev.LastPingAt) {
		res.OutOfOrder = true
		log.Printf("out-of-order ping: driver=%s received_at=%s last=%s",
			ping.DriverID, ping.ReceivedAt.Format(time.RFC3339), prev.LastPingAt.Format(time.RFC3339))
		return res, nil
	}

	if hasPrev {
		if gap := ping.ReceivedAt.Sub(prev.LastPingAt); gap > g.Timeout {
			alert, err := g.Alerts.Raise(ctx, domain.Alert{
				Type:     domain.AlertNoGPS,
				Severity: domain.SeverityWarning,
				DriverID: ping.DriverID,
				TripID:   ping.TripID,
				Metadata: map[string]any{
					"lastUpdate":      prev.LastPingAt,
					"durationMinutes": int(math.Round(gap.Minutes())),
				},
			})
			if err != nil {
				return res, fmt.Errorf("ingest ping: %w", err)
			}
			res.NoGPSAlert = &alert
		}
	}

	g.states.Add(ping.DriverID, domain.DriverLiveState{LastPingAt: ping.ReceivedAt})

	if g.Locations != nil {
		err := g.Locations.SetLatest(ctx, domain.LiveLocation{
			DriverID: ping.DriverID,
			Location: ping.Location,
			At:       ping.ReceivedAt,
		})
		if err != nil {
			log.Printf("location store write failed: driver=%s err=%v", ping.DriverID, err)
		}
	}

	if ping.TripID != "" && g.Deviation != nil {
		dev, err := g.Deviation.CheckDeviation(ctx, ping.DriverID, ping.Location, ping.TripID)
		if err != nil {
			return res, fmt.Errorf("ingest ping: %w", err)
		}
		res.Deviation = &dev
	}

	return res, nil
}

// liveState returns the cached state, falling back to the latest logged
// ping. Must be called with the driver lock held.
func (g *GPSIngest) liveState(ctx context.Context, driverID string) (domain.DriverLiveState, bool, error) {
	if st, ok := g.states.Get(driverID); ok {
		return st, true, nil
	}

	latest, err := g.Pings.Latest(ctx, driverID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.DriverLiveState{}, false, nil
	}
	if err != nil {
		return domain.DriverLiveState{}, false, fmt.Errorf("rebuild live state: %w", err)
	}

	st := domain.DriverLiveState{LastPingAt: latest.ReceivedAt}
	g.states.Add(driverID, st)
	return st, true, nil
}

// HeatmapPrecision is the number of decimals pings are bucketed to
// (about 11 m of latitude).
const HeatmapPrecision = 4

const maxHeatmapWindow = 31 * 24 * time.Hour

// Heatmap aggregates a driver's pings in [from, to) into location x hour
// buckets, ordered by hour then descending weight.
func (g *GPSIngest) Heatmap(ctx context.Context, driverID string, from, to time.Time) ([]domain.HeatmapCell, error) {
	if strings.TrimSpace(driverID) == "" {
		return nil, fmt.Errorf("heatmap: %w: driver id is required", domain.ErrInvalidInput)
	}
	if !from.Before(to) {
		return nil, fmt.Errorf("heatmap: %w: start must be before end", domain.ErrInvalidInput)
	}
	if to.Sub(from) > maxHeatmapWindow {
		return nil, fmt.Errorf("heatmap: %w: window exceeds 31 days", domain.ErrInvalidInput)
	}

	pings, err := g.Pings.ListRange(ctx, driverID, from, to)
	if err != nil {
		return nil, fmt.Errorf("heatmap: %w", err)
	}

	type key struct {
		lat, lng float64
		hour     int64
	}
	scale := math.Pow10(HeatmapPrecision)
	counts := make(map[key]int, len(pings))
	for _, p := range pings {
		k := key{
			lat:  math.Round(p.Location.Lat*scale) / scale,
			lng:  math.Round(p.Location.Lng*scale) / scale,
			hour: p.ReceivedAt.UTC().Truncate(time.Hour).Unix(),
		}
		counts[k]++
	}

	cells := make([]domain.HeatmapCell, 0, len(counts))
	for k, n := range counts {
		cells = append(cells, domain.HeatmapCell{
			Lat:    k.lat,
			Lng:    k.lng,
			Hour:   time.Unix(k.hour, 0).UTC(),
			Weight: n,
		})
	}

	sort.Slice(cells, func(i, j int) bool {
		a, b := cells[i], cells[j]
		switch {
		case !a.Hour.Equal(b.Hour):
			return a.Hour.Before(b.Hour)
		case a.Weight != b.Weight:
			return a.Weight > b.Weight
		case a.Lat != b.Lat:
			return a.Lat < b.Lat
		}
		return a.Lng < b.Lng
	})

	return cells, nil
}
