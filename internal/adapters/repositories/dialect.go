package repositories

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Dialect selects the SQL flavour a repository speaks.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// DialectFor maps a database/sql driver name to a Dialect.
func DialectFor(driverName string) (Dialect, error) {
	switch driverName {
	case "sqlite":
		return SQLite, nil
	case "pgx", "postgres":
		return Postgres, nil
	}
	return SQLite, fmt.Errorf("unsupported database driver %q", driverName)
}

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders into $n for Postgres. Queries must not
// contain literal question marks.
func (d Dialect) rebind(q string) string {
	if d != Postgres {
		return q
	}

	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLite stores timestamps as fixed-width UTC text so they sort and compare
// lexically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func (d Dialect) timeArg(t time.Time) any {
	if d == Postgres {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimeLayout)
}

// nullTimeArg maps a nil time to NULL.
func (d Dialect) nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return d.timeArg(*t)
}

// dbTime scans timestamps from either dialect.
type dbTime struct{ time.Time }

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	}
	return fmt.Errorf("scan time: unsupported type %T", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("scan time: unrecognized format %q", s)
}

var _ sql.Scanner = (*dbTime)(nil)

// nullString maps "" to NULL.
func nullString(s string) driver.Valuer {
	return sql.NullString{String: s, Valid: s != ""}
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
