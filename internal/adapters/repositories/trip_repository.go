package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"school-transport-service/internal/domain"
)

// TripRepository gives the monitors read access to trip scheduling.
type TripRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewSqliteTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{DB: db, Dialect: SQLite}
}

func NewSQLTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{DB: db, Dialect: Postgres}
}

const tripColumns = `id, driver_id, school_id, scheduled_at, dest_lat, dest_lng, status`

func (r *TripRepository) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if r.DB == nil {
		return nil, errors.New("trip repository: DB is nil")
	}

	q := r.Dialect.rebind(`SELECT ` + tripColumns + ` FROM trips WHERE id = ?;`)
	rows, err := r.DB.QueryContext(ctx, q, tripID)
	if err != nil {
		return nil, fmt.Errorf("get trip %s: %w", tripID, err)
	}
	defer rows.Close()

	trips, err := scanTrips(rows)
	if err != nil {
		return nil, fmt.Errorf("get trip %s: %w", tripID, err)
	}
	if len(trips) == 0 {
		return nil, fmt.Errorf("get trip %s: %w", tripID, domain.ErrNotFound)
	}
	return trips[0], nil
}

func (r *TripRepository) ListActive(ctx context.Context) ([]*domain.Trip, error) {
	if r.DB == nil {
		return nil, errors.New("trip repository: DB is nil")
	}

	q := r.Dialect.rebind(`
	SELECT ` + tripColumns + `
	FROM trips
	WHERE status IN (?, ?)
	ORDER BY scheduled_at, id;
	`)
	rows, err := r.DB.QueryContext(ctx, q, domain.TripScheduled, domain.TripInProgress)
	if err != nil {
		return nil, fmt.Errorf("list active trips: query trips table: %w", err)
	}
	defer rows.Close()

	trips, err := scanTrips(rows)
	if err != nil {
		return nil, fmt.Errorf("list active trips: %w", err)
	}
	return trips, nil
}

func (r *TripRepository) EndTrip(ctx context.Context, tripID string) error {
	if r.DB == nil {
		return errors.New("trip repository: DB is nil")
	}

	q := r.Dialect.rebind(`UPDATE trips SET status = ? WHERE id = ?;`)
	res, err := r.DB.ExecContext(ctx, q, domain.TripCompleted, tripID)
	if err != nil {
		return fmt.Errorf("end trip %s: %w", tripID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end trip %s: rows affected: %w", tripID, err)
	}
	if n == 0 {
		return fmt.Errorf("end trip %s: %w", tripID, domain.ErrNotFound)
	}
	return nil
}

// UpsertMany inserts or replaces trips in one transaction.
func (r *TripRepository) UpsertMany(ctx context.Context, trips []*domain.Trip) error {
	if r.DB == nil {
		return errors.New("trip repository: DB is nil")
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert trips: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, r.Dialect.rebind(`
	INSERT INTO trips (`+tripColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE
	SET driver_id = EXCLUDED.driver_id,
		school_id = EXCLUDED.school_id,
		scheduled_at = EXCLUDED.scheduled_at,
		dest_lat = EXCLUDED.dest_lat,
		dest_lng = EXCLUDED.dest_lng,
		status = EXCLUDED.status;
	`))
	if err != nil {
		return fmt.Errorf("upsert trips: prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trips {
		_, err := stmt.ExecContext(ctx,
			t.ID, t.DriverID, t.SchoolID, r.Dialect.timeArg(t.ScheduledAt),
			t.Destination.Lat, t.Destination.Lng, t.Status,
		)
		if err != nil {
			return fmt.Errorf("upsert trips: insert trip_id=%s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert trips: commit tx: %w", err)
	}
	return nil
}

// InsertMissing inserts trips whose id is not stored yet and leaves
// existing rows untouched. It returns the number of rows inserted.
func (r *TripRepository) InsertMissing(ctx context.Context, trips []*domain.Trip) (int, error) {
	if r.DB == nil {
		return 0, errors.New("trip repository: DB is nil")
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert trips: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, r.Dialect.rebind(`
	INSERT INTO trips (`+tripColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING;
	`))
	if err != nil {
		return 0, fmt.Errorf("insert trips: prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, t := range trips {
		res, err := stmt.ExecContext(ctx,
			t.ID, t.DriverID, t.SchoolID, r.Dialect.timeArg(t.ScheduledAt),
			t.Destination.Lat, t.Destination.Lng, t.Status,
		)
		if err != nil {
			return 0, fmt.Errorf("insert trips: insert trip_id=%s: %w", t.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert trips: rows affected trip_id=%s: %w", t.ID, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert trips: commit tx: %w", err)
	}
	return inserted, nil
}

func scanTrips(rows *sql.Rows) ([]*domain.Trip, error) {
	out := make([]*domain.Trip, 0, 16)
	for rows.Next() {
		var t domain.Trip
		var scheduledAt dbTime
		err := rows.Scan(&t.ID, &t.DriverID, &t.SchoolID, &scheduledAt, &t.Destination.Lat, &t.Destination.Lng, &t.Status)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		t.ScheduledAt = scheduledAt.Time
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return out, nil
}
