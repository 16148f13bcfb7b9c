package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/platform/obs"
	"time"
)

// RouteRepository implements ports.RouteRepository over database/sql.
type RouteRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewSqliteRouteRepository(db *sql.DB) *RouteRepository {
	return &RouteRepository{DB: db, Dialect: SQLite}
}

func NewSQLRouteRepository(db *sql.DB) *RouteRepository {
	return &RouteRepository{DB: db, Dialect: Postgres}
}

// stopRecord is the persisted JSON form of a domain.StopETA.
type stopRecord struct {
	StudentID          string    `json:"student_id"`
	Lat                float64   `json:"lat"`
	Lng                float64   `json:"lng"`
	Address            string    `json:"address,omitempty"`
	EstimatedArrival   time.Time `json:"estimated_arrival"`
	LegDurationSeconds int       `json:"leg_duration_seconds"`
	LegDistanceMeters  int       `json:"leg_distance_meters"`
}

const routeColumns = `
	id, driver_id, school_id, depot_lat, depot_lng, stop_order, per_stop_eta,
	geometry, total_duration_seconds, total_distance_meters,
	scheduled_arrival, generated_at, active
`

// Save supersedes the active route for the route's (driver, school) pair.
// On Postgres a transaction-scoped advisory lock serializes writers for the
// pair; the partial unique index guarantees a single active row on both
// dialects.
func (r *RouteRepository) Save(ctx context.Context, route *domain.OptimizedRoute) (err error) {
	defer obs.Time(ctx, "routes.Save")(&err)

	if r.DB == nil {
		return errors.New("route repository: DB is nil")
	}
	if route == nil || route.ID == "" {
		return fmt.Errorf("save route: %w: route id is required", domain.ErrInvalidInput)
	}

	stopOrder, err := json.Marshal(route.StopOrder)
	if err != nil {
		return fmt.Errorf("save route: marshal stop order: %w", err)
	}

	stops := make([]stopRecord, 0, len(route.PerStopETA))
	for _, s := range route.PerStopETA {
		stops = append(stops, stopRecord{
			StudentID:          s.StudentID,
			Lat:                s.Location.Lat,
			Lng:                s.Location.Lng,
			Address:            s.Address,
			EstimatedArrival:   s.EstimatedArrival.UTC(),
			LegDurationSeconds: s.LegDurationSeconds,
			LegDistanceMeters:  s.LegDistanceMeters,
		})
	}
	perStop, err := json.Marshal(stops)
	if err != nil {
		return fmt.Errorf("save route: marshal per-stop eta: %w", err)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save route: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if r.Dialect == Postgres {
		_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1));`, route.DriverID+"|"+route.SchoolID)
		if err != nil {
			return fmt.Errorf("save route: lock pair: %w", err)
		}
	}

	deactivate := r.Dialect.rebind(`
	UPDATE optimized_routes
	SET active = ?
	WHERE driver_id = ? AND school_id = ? AND active = ?;
	`)
	if _, err := tx.ExecContext(ctx, deactivate, false, route.DriverID, route.SchoolID, true); err != nil {
		return fmt.Errorf("save route: deactivate previous: %w", err)
	}

	insert := r.Dialect.rebind(`
	INSERT INTO optimized_routes (` + routeColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)
	_, err = tx.ExecContext(ctx, insert,
		route.ID,
		route.DriverID,
		route.SchoolID,
		route.Depot.Lat,
		route.Depot.Lng,
		string(stopOrder),
		string(perStop),
		route.Geometry,
		route.TotalDurationSeconds,
		route.TotalDistanceMeters,
		r.Dialect.timeArg(route.ScheduledArrival),
		r.Dialect.timeArg(route.GeneratedAt),
		true,
	)
	if err != nil {
		return fmt.Errorf("save route: insert route_id=%s: %w", route.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save route: commit tx: %w", err)
	}

	route.Active = true
	return nil
}

func (r *RouteRepository) GetByID(ctx context.Context, routeID string) (*domain.OptimizedRoute, error) {
	if r.DB == nil {
		return nil, errors.New("route repository: DB is nil")
	}

	q := r.Dialect.rebind(`SELECT ` + routeColumns + ` FROM optimized_routes WHERE id = ?;`)
	route, err := scanRoute(r.DB.QueryRowContext(ctx, q, routeID))
	if isNoRows(err) {
		return nil, fmt.Errorf("get route %s: %w", routeID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get route %s: %w", routeID, err)
	}
	return route, nil
}

func (r *RouteRepository) GetActive(ctx context.Context, driverID, schoolID string) (*domain.OptimizedRoute, error) {
	if r.DB == nil {
		return nil, errors.New("route repository: DB is nil")
	}

	q := r.Dialect.rebind(`
	SELECT ` + routeColumns + `
	FROM optimized_routes
	WHERE driver_id = ? AND school_id = ? AND active = ?
	ORDER BY generated_at DESC
	LIMIT 1;
	`)
	route, err := scanRoute(r.DB.QueryRowContext(ctx, q, driverID, schoolID, true))
	if isNoRows(err) {
		return nil, fmt.Errorf("get active route driver=%s school=%s: %w", driverID, schoolID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get active route driver=%s school=%s: %w", driverID, schoolID, err)
	}
	return route, nil
}

func scanRoute(row *sql.Row) (*domain.OptimizedRoute, error) {
	var (
		route              domain.OptimizedRoute
		stopOrder, perStop []byte
		scheduled, genAt   dbTime
	)

	err := row.Scan(
		&route.ID,
		&route.DriverID,
		&route.SchoolID,
		&route.Depot.Lat,
		&route.Depot.Lng,
		&stopOrder,
		&perStop,
		&route.Geometry,
		&route.TotalDurationSeconds,
		&route.TotalDistanceMeters,
		&scheduled,
		&genAt,
		&route.Active,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stopOrder, &route.StopOrder); err != nil {
		return nil, fmt.Errorf("decode stop order: %w", err)
	}

	var stops []stopRecord
	if err := json.Unmarshal(perStop, &stops); err != nil {
		return nil, fmt.Errorf("decode per-stop eta: %w", err)
	}
	route.PerStopETA = make([]domain.StopETA, 0, len(stops))
	for _, s := range stops {
		route.PerStopETA = append(route.PerStopETA, domain.StopETA{
			StudentID:          s.StudentID,
			Location:           domain.GeoPoint{Lat: s.Lat, Lng: s.Lng},
			Address:            s.Address,
			EstimatedArrival:   s.EstimatedArrival,
			LegDurationSeconds: s.LegDurationSeconds,
			LegDistanceMeters:  s.LegDistanceMeters,
		})
	}

	route.ScheduledArrival = scheduled.Time
	route.GeneratedAt = genAt.Time
	return &route, nil
}
