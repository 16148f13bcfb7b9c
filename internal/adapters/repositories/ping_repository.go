package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"school-transport-service/internal/domain"
	"time"
)

// PingRepository implements the append-only ping log.
type PingRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewSqlitePingRepository(db *sql.DB) *PingRepository {
	return &PingRepository{DB: db, Dialect: SQLite}
}

func NewSQLPingRepository(db *sql.DB) *PingRepository {
	return &PingRepository{DB: db, Dialect: Postgres}
}

const pingColumns = `id, driver_id, lat, lng, speed, heading, accuracy, trip_id, recorded_at, received_at`

// Append inserts ping and fills in its generated id.
func (r *PingRepository) Append(ctx context.Context, ping *domain.LocationPing) error {
	if r.DB == nil {
		return errors.New("ping repository: DB is nil")
	}

	q := r.Dialect.rebind(`
	INSERT INTO location_pings (driver_id, lat, lng, speed, heading, accuracy, trip_id, recorded_at, received_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	RETURNING id;
	`)
	err := r.DB.QueryRowContext(ctx, q,
		ping.DriverID,
		ping.Location.Lat,
		ping.Location.Lng,
		ping.Speed,
		ping.Heading,
		ping.Accuracy,
		nullString(ping.TripID),
		r.Dialect.nullTimeArg(ping.RecordedAt),
		r.Dialect.timeArg(ping.ReceivedAt),
	).Scan(&ping.ID)
	if err != nil {
		return fmt.Errorf("append ping driver=%s: %w", ping.DriverID, err)
	}
	return nil
}

func (r *PingRepository) Latest(ctx context.Context, driverID string) (*domain.LocationPing, error) {
	if r.DB == nil {
		return nil, errors.New("ping repository: DB is nil")
	}

	q := r.Dialect.rebind(`
	SELECT ` + pingColumns + `
	FROM location_pings
	WHERE driver_id = ?
	ORDER BY received_at DESC, id DESC
	LIMIT 1;
	`)
	rows, err := r.DB.QueryContext(ctx, q, driverID)
	if err != nil {
		return nil, fmt.Errorf("latest ping driver=%s: %w", driverID, err)
	}
	defer rows.Close()

	pings, err := scanPings(rows)
	if err != nil {
		return nil, fmt.Errorf("latest ping driver=%s: %w", driverID, err)
	}
	if len(pings) == 0 {
		return nil, fmt.Errorf("latest ping driver=%s: %w", driverID, domain.ErrNotFound)
	}
	return pings[0], nil
}

func (r *PingRepository) ListRange(ctx context.Context, driverID string, from, to time.Time) ([]*domain.LocationPing, error) {
	if r.DB == nil {
		return nil, errors.New("ping repository: DB is nil")
	}

	q := r.Dialect.rebind(`
	SELECT ` + pingColumns + `
	FROM location_pings
	WHERE driver_id = ? AND received_at >= ? AND received_at < ?
	ORDER BY received_at, id;
	`)
	rows, err := r.DB.QueryContext(ctx, q, driverID, r.Dialect.timeArg(from), r.Dialect.timeArg(to))
	if err != nil {
		return nil, fmt.Errorf("list pings driver=%s: query location_pings table: %w", driverID, err)
	}
	defer rows.Close()

	pings, err := scanPings(rows)
	if err != nil {
		return nil, fmt.Errorf("list pings driver=%s: %w", driverID, err)
	}
	return pings, nil
}

func scanPings(rows *sql.Rows) ([]*domain.LocationPing, error) {
	out := make([]*domain.LocationPing, 0, 64)
	for rows.Next() {
		var (
			p                        domain.LocationPing
			speed, heading, accuracy sql.NullFloat64
			tripID                   sql.NullString
			recordedAt, receivedAt   dbTime
		)
		err := rows.Scan(
			&p.ID, &p.DriverID, &p.Location.Lat, &p.Location.Lng,
			&speed, &heading, &accuracy, &tripID, &recordedAt, &receivedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		p.Speed = floatPtr(speed)
		p.Heading = floatPtr(heading)
		p.Accuracy = floatPtr(accuracy)
		p.TripID = tripID.String
		if !recordedAt.IsZero() {
			t := recordedAt.Time
			p.RecordedAt = &t
		}
		p.ReceivedAt = receivedAt.Time
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration: %w", err)
	}
	return out, nil
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
