package cache

import (
	"context"
	"database/sql"
	"school-transport-service/internal/domain"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
	CREATE TABLE geocode_cache (
		address TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestSqliteGeocodeCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewSqliteGeocodeCache(openTestDB(t))

	err := c.PutMany(ctx, map[string]domain.GeoPoint{
		"1 Main St":  {Lat: 33.1, Lng: -112.1},
		"2 Oak Ave":  {Lat: 33.2, Lng: -112.2},
		"3 Pine Way": {Lat: 33.3, Lng: -112.3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := c.GetMany(ctx, []string{"1 Main St", " 2 Oak Ave ", "1 Main St", "missing", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("hits = %d, want 2", len(got))
	}
	if got["2 Oak Ave"] != (domain.GeoPoint{Lat: 33.2, Lng: -112.2}) {
		t.Fatalf("2 Oak Ave = %v", got["2 Oak Ave"])
	}

	// Overwrite replaces the cached point.
	if err := c.PutMany(ctx, map[string]domain.GeoPoint{"1 Main St": {Lat: 1, Lng: 1}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = c.GetMany(ctx, []string{"1 Main St"})
	if got["1 Main St"] != (domain.GeoPoint{Lat: 1, Lng: 1}) {
		t.Fatalf("1 Main St = %v, want overwritten", got["1 Main St"])
	}
}

func TestSqliteGeocodeCacheRejectsInvalidPoint(t *testing.T) {
	c := NewSqliteGeocodeCache(openTestDB(t))

	err := c.PutMany(context.Background(), map[string]domain.GeoPoint{"bad": {Lat: 91}})
	if err == nil {
		t.Fatal("expected error for out-of-range point")
	}
}
