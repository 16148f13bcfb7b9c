package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"school-transport-service/internal/domain"
	"strings"
	"time"
)

// AlertRepository persists alerts for the notification fan-out to read.
type AlertRepository struct {
	DB      *sql.DB
	Dialect Dialect
}

func NewSqliteAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{DB: db, Dialect: SQLite}
}

func NewSQLAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{DB: db, Dialect: Postgres}
}

func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	if r.DB == nil {
		return errors.New("alert repository: DB is nil")
	}

	metadata := alert.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("create alert: marshal metadata: %w", err)
	}

	q := r.Dialect.rebind(`
	INSERT INTO alerts (id, type, severity, driver_id, trip_id, metadata, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?);
	`)
	_, err = r.DB.ExecContext(ctx, q,
		alert.ID,
		string(alert.Type),
		string(alert.Severity),
		alert.DriverID,
		nullString(alert.TripID),
		string(meta),
		r.Dialect.timeArg(alert.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("create alert type=%s driver=%s: %w", alert.Type, alert.DriverID, err)
	}
	return nil
}

func (r *AlertRepository) ListByTypes(
	ctx context.Context,
	types []domain.AlertType,
	since time.Time,
	limit int,
) ([]*domain.Alert, error) {
	if r.DB == nil {
		return nil, errors.New("alert repository: DB is nil")
	}
	if limit <= 0 {
		limit = 100
	}

	args := []any{r.Dialect.timeArg(since)}
	where := "created_at >= ?"
	if len(types) > 0 {
		ph := make([]string, 0, len(types))
		for _, t := range types {
			ph = append(ph, "?")
			args = append(args, string(t))
		}
		// Only the placeholder structure is interpolated; values stay parameterized.
		where += " AND type IN (" + strings.Join(ph, ",") + ")"
	}
	args = append(args, limit)

	q := r.Dialect.rebind(`
	SELECT id, type, severity, driver_id, trip_id, metadata, created_at
	FROM alerts
	WHERE ` + where + `
	ORDER BY created_at DESC, id
	LIMIT ?;
	`)
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: query alerts table: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Alert, 0, limit)
	for rows.Next() {
		var (
			a         domain.Alert
			typ, sev  string
			tripID    sql.NullString
			meta      []byte
			createdAt dbTime
		)
		if err := rows.Scan(&a.ID, &typ, &sev, &a.DriverID, &tripID, &meta, &createdAt); err != nil {
			return nil, fmt.Errorf("list alerts: scan row: %w", err)
		}
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return nil, fmt.Errorf("list alerts: decode metadata id=%s: %w", a.ID, err)
		}
		a.Type = domain.AlertType(typ)
		a.Severity = domain.Severity(sev)
		a.TripID = tripID.String
		a.CreatedAt = createdAt.Time
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alerts: row iteration: %w", err)
	}
	return out, nil
}
