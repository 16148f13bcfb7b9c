package domain

import (
	"fmt"
	"math"
)

// Immutable WGS84 point (latitude, longitude) in degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate reports ErrInvalidInput when the point is outside the
// [-90, 90] x [-180, 180] range.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) {
		return fmt.Errorf("geo point: %w: NaN coordinate", ErrInvalidInput)
	}
	if p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("geo point: %w: lat %v out of range", ErrInvalidInput, p.Lat)
	}
	if p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("geo point: %w: lng %v out of range", ErrInvalidInput, p.Lng)
	}
	return nil
}

// Return coordinates as "lat,lng" for external API compatibility.
func (p GeoPoint) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}
