package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"school-transport-service/internal/domain"
	"strings"
	"time"
)

func sqliteSchema() []string {
	return []string{
		`
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`,
		`
	CREATE TABLE IF NOT EXISTS optimized_routes (
		id TEXT PRIMARY KEY,
		driver_id TEXT NOT NULL,
		school_id TEXT NOT NULL,
		depot_lat REAL NOT NULL,
		depot_lng REAL NOT NULL,
		stop_order TEXT NOT NULL,
		per_stop_eta TEXT NOT NULL,
		geometry TEXT NOT NULL,
		total_duration_seconds INTEGER NOT NULL,
		total_distance_meters INTEGER NOT NULL,
		scheduled_arrival TEXT NOT NULL,
		generated_at TEXT NOT NULL,
		active INTEGER NOT NULL
	);
	`,
		`
	CREATE UNIQUE INDEX IF NOT EXISTS idx_optimized_routes_active_pair
	ON optimized_routes(driver_id, school_id) WHERE active = 1;
	`,
		`
	CREATE TABLE IF NOT EXISTS location_pings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		driver_id TEXT NOT NULL,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		speed REAL,
		heading REAL,
		accuracy REAL,
		trip_id TEXT,
		recorded_at TEXT,
		received_at TEXT NOT NULL
	);
	`,
		`
	CREATE INDEX IF NOT EXISTS idx_location_pings_driver_received
	ON location_pings(driver_id, received_at);
	`,
		`
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		driver_id TEXT NOT NULL,
		trip_id TEXT,
		metadata TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`,
		`
	CREATE INDEX IF NOT EXISTS idx_alerts_type_created
	ON alerts(type, created_at);
	`,
		`
	CREATE TABLE IF NOT EXISTS trips (
		id TEXT PRIMARY KEY,
		driver_id TEXT NOT NULL,
		school_id TEXT NOT NULL,
		scheduled_at TEXT NOT NULL,
		dest_lat REAL NOT NULL,
		dest_lng REAL NOT NULL,
		status TEXT NOT NULL
	);
	`,
	}
}

func postgresSchema() []string {
	return []string{
		`
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`,
		`
	CREATE TABLE IF NOT EXISTS optimized_routes (
		id TEXT PRIMARY KEY,
		driver_id TEXT NOT NULL,
		school_id TEXT NOT NULL,
		depot_lat DOUBLE PRECISION NOT NULL,
		depot_lng DOUBLE PRECISION NOT NULL,
		stop_order JSONB NOT NULL,
		per_stop_eta JSONB NOT NULL,
		geometry TEXT NOT NULL,
		total_duration_seconds INTEGER NOT NULL,
		total_distance_meters INTEGER NOT NULL,
		scheduled_arrival TIMESTAMPTZ NOT NULL,
		generated_at TIMESTAMPTZ NOT NULL,
		active BOOLEAN NOT NULL
	);
	`,
		`
	CREATE UNIQUE INDEX IF NOT EXISTS idx_optimized_routes_active_pair
	ON optimized_routes(driver_id, school_id) WHERE active;
	`,
		`
	CREATE TABLE IF NOT EXISTS location_pings (
		id BIGSERIAL PRIMARY KEY,
		driver_id TEXT NOT NULL,
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		speed DOUBLE PRECISION,
		heading DOUBLE PRECISION,
		accuracy DOUBLE PRECISION,
		trip_id TEXT,
		recorded_at TIMESTAMPTZ,
		received_at TIMESTAMPTZ NOT NULL
	);
	`,
		`
	CREATE INDEX IF NOT EXISTS idx_location_pings_driver_received
	ON location_pings(driver_id, received_at);
	`,
		`
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		severity TEXT NOT NULL,
		driver_id TEXT NOT NULL,
		trip_id TEXT,
		metadata JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	`,
		`
	CREATE INDEX IF NOT EXISTS idx_alerts_type_created
	ON alerts(type, created_at);
	`,
		`
	CREATE TABLE IF NOT EXISTS trips (
		id TEXT PRIMARY KEY,
		driver_id TEXT NOT NULL,
		school_id TEXT NOT NULL,
		scheduled_at TIMESTAMPTZ NOT NULL,
		dest_lat DOUBLE PRECISION NOT NULL,
		dest_lng DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL
	);
	`,
	}
}

// Initialize the database schema for the given dialect.
func InitSchema(ctx context.Context, db *sql.DB, d Dialect) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := sqliteSchema()
	if d == Postgres {
		statements = postgresSchema()
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type TripSeed struct {
	TripID      string    `json:"trip_id"`
	DriverID    string    `json:"driver_id"`
	SchoolID    string    `json:"school_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Destination struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"destination"`
	Status string `json:"status"`
}

// Populate the trips table from a JSON file and return the number of trips
// written. Existing trips are kept as stored unless replace is set, so a
// restart never reopens a completed trip.
func SeedTripsFromJSON(ctx context.Context, repo *TripRepository, jsonPath string, replace bool) (int, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return 0, fmt.Errorf("seed trips: read %q: %w", jsonPath, err)
	}

	var data []TripSeed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return 0, fmt.Errorf("seed trips: parse json: %w", err)
	}

	trips := make([]*domain.Trip, 0, len(data))
	for i, item := range data {
		id := strings.TrimSpace(item.TripID)
		if id == "" {
			return 0, fmt.Errorf("seed trips: item at index %d: trip_id cannot be empty", i+1)
		}
		if strings.TrimSpace(item.DriverID) == "" || strings.TrimSpace(item.SchoolID) == "" {
			return 0, fmt.Errorf("seed trips: trip %q: driver_id and school_id are required", id)
		}

		dest := domain.GeoPoint{Lat: item.Destination.Lat, Lng: item.Destination.Lng}
		if err := dest.Validate(); err != nil {
			return 0, fmt.Errorf("seed trips: trip %q: %w", id, err)
		}

		status := item.Status
		if status == "" {
			status = domain.TripScheduled
		}

		trips = append(trips, &domain.Trip{
			ID:          id,
			DriverID:    item.DriverID,
			SchoolID:    item.SchoolID,
			ScheduledAt: item.ScheduledAt,
			Destination: dest,
			Status:      status,
		})
	}

	if replace {
		if err := repo.UpsertMany(ctx, trips); err != nil {
			return 0, fmt.Errorf("seed trips: %w", err)
		}
		return len(trips), nil
	}

	n, err := repo.InsertMissing(ctx, trips)
	if err != nil {
		return 0, fmt.Errorf("seed trips: %w", err)
	}
	return n, nil
}
