// Package app is the composition root shared by the server and dbtool:
// it wires concrete adapters behind ports according to Config.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"school-transport-service/internal/adapters/alerts"
	"school-transport-service/internal/adapters/cache"
	"school-transport-service/internal/adapters/locationstore"
	"school-transport-service/internal/adapters/repositories"
	"school-transport-service/internal/adapters/routing"
	"school-transport-service/internal/api"
	"school-transport-service/internal/config"
	"school-transport-service/internal/platform/db"
	"school-transport-service/internal/ports"
	"school-transport-service/internal/services"
	"strings"
)

type App struct {
	Config *config.Config
	DB     *sql.DB

	Trips *repositories.TripRepository

	Alerts    *services.AlertService
	Planner   *services.RoutePlanner
	Ingest    *services.GPSIngest
	Deviation *services.DeviationMonitor
	Arrival   *services.ArrivalMonitor

	closers []func() error
}

// Open connects to the database and applies the schema. It is the minimal
// setup for schema and seed commands.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	d, err := repositories.DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, fmt.Errorf("open app: %w", err)
	}

	conn, err := db.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open app: %w", err)
	}
	if err := repositories.InitSchema(ctx, conn, d); err != nil {
		conn.Close()
		return nil, fmt.Errorf("open app: %w", err)
	}

	a := &App{Config: cfg, DB: conn, closers: []func() error{conn.Close}}
	if d == repositories.Postgres {
		a.Trips = repositories.NewSQLTripRepository(conn)
	} else {
		a.Trips = repositories.NewSqliteTripRepository(conn)
	}
	return a, nil
}

// New opens the database and wires every service.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Config
	postgres := cfg.DBDriver == "pgx"

	var (
		routeRepo    ports.RouteRepository
		pingRepo     ports.PingRepository
		alertRepo    ports.AlertRepository
		geocodeCache routing.GeocodeCache
	)
	if postgres {
		routeRepo = repositories.NewSQLRouteRepository(a.DB)
		pingRepo = repositories.NewSQLPingRepository(a.DB)
		alertRepo = repositories.NewSQLAlertRepository(a.DB)
		geocodeCache = cache.NewSQLGeocodeCache(a.DB)
	} else {
		routeRepo = repositories.NewSqliteRouteRepository(a.DB)
		pingRepo = repositories.NewSqlitePingRepository(a.DB)
		alertRepo = repositories.NewSqliteAlertRepository(a.DB)
		geocodeCache = cache.NewSqliteGeocodeCache(a.DB)
	}

	provider, geocoder, err := newRoutingProvider(cfg, geocodeCache)
	if err != nil {
		return fmt.Errorf("wire app: %w", err)
	}

	locations, err := a.newLocationStore(ctx, pingRepo)
	if err != nil {
		return fmt.Errorf("wire app: %w", err)
	}

	publisher, err := a.newAlertPublisher()
	if err != nil {
		return fmt.Errorf("wire app: %w", err)
	}

	a.Alerts = services.NewAlertService(alertRepo, publisher)

	a.Deviation = services.NewDeviationMonitor(
		a.Trips, routeRepo, a.Alerts,
		cfg.DeviationThresholdMeters, cfg.RouteCacheSize, cfg.RouteCacheTTL,
	)
	a.Deviation.VertexOnly = cfg.DeviationVertexOnly

	a.Ingest, err = services.NewGPSIngest(pingRepo, locations, a.Alerts, a.Deviation, cfg.GPSTimeout, cfg.LiveStateSize)
	if err != nil {
		return fmt.Errorf("wire app: %w", err)
	}

	optimizer := services.NewRouteOptimizer(provider, geocoder, cfg.RoutingTimeout)
	store := services.NewRouteStore(routeRepo, cfg.RouteStaleAfter)
	a.Planner = services.NewRoutePlanner(optimizer, store, a.Deviation)

	a.Arrival = services.NewArrivalMonitor(
		a.Trips, locations, provider, a.Alerts, a.Deviation,
		cfg.LateGrace, cfg.RoutingTimeout,
	)
	a.Arrival.Concurrency = cfg.ArrivalCheckConcurrency

	return nil
}

// newRoutingProvider uses Google Maps when an API key is configured and
// falls back to straight-line estimates otherwise. The fallback has no
// geocoder, so address-only stops are rejected.
func newRoutingProvider(cfg *config.Config, geocodeCache routing.GeocodeCache) (ports.RoutingProvider, ports.Geocoder, error) {
	if strings.TrimSpace(cfg.GoogleMapsAPIKey) != "" {
		p, err := routing.NewGoogleMapsProvider(cfg.GoogleMapsAPIKey, routing.WithGeocodeCache(geocodeCache))
		if err != nil {
			return nil, nil, err
		}
		log.Printf("routing provider=google")
		return p, p, nil
	}

	p, err := routing.NewStraightLineProvider(cfg.AverageSpeedKmh)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("routing provider=straight_line speed_kmh=%.1f", cfg.AverageSpeedKmh)
	return p, nil, nil
}

func (a *App) newLocationStore(ctx context.Context, pings ports.PingRepository) (ports.LocationStore, error) {
	if strings.TrimSpace(a.Config.RedisURL) == "" {
		log.Printf("location store=ping_log ttl=%s", a.Config.LocationTTL)
		return locationstore.NewPingLocationStore(pings, a.Config.LocationTTL), nil
	}

	s, err := locationstore.NewRedisLocationStoreFromURL(ctx, a.Config.RedisURL, a.Config.LocationTTL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, s.Close)
	log.Printf("location store=redis ttl=%s", a.Config.LocationTTL)
	return s, nil
}

func (a *App) newAlertPublisher() (ports.AlertPublisher, error) {
	brokers := a.Config.Brokers()
	if len(brokers) == 0 {
		log.Printf("alert publisher=log")
		return alerts.LogPublisher{}, nil
	}

	p, err := alerts.NewKafkaPublisherFromBrokers(brokers, a.Config.KafkaAlertTopic)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, p.Close)
	return p, nil
}

// Handler returns the HTTP API over the wired services.
func (a *App) Handler() http.Handler {
	return api.NewRouter(api.Deps{
		DB:      a.DB,
		Planner: a.Planner,
		Ingest:  a.Ingest,
		Arrival: a.Arrival,
		Alerts:  a.Alerts,
	})
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
