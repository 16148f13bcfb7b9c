package geo

import (
	"fmt"
	"school-transport-service/internal/domain"

	"github.com/twpayne/go-polyline"
)

// EncodePolyline encodes points with the Google encoded polyline algorithm
// (precision 1e-5).
func EncodePolyline(points []domain.GeoPoint) string {
	coords := make([][]float64, 0, len(points))
	for _, p := range points {
		coords = append(coords, []float64{p.Lat, p.Lng})
	}
	return string(polyline.EncodeCoords(coords))
}

// DecodePolyline decodes a Google encoded polyline. An empty string decodes
// to an empty slice.
func DecodePolyline(s string) ([]domain.GeoPoint, error) {
	if s == "" {
		return []domain.GeoPoint{}, nil
	}

	coords, rest, err := polyline.DecodeCoords([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("decode polyline: %d trailing bytes", len(rest))
	}

	out := make([]domain.GeoPoint, 0, len(coords))
	for _, c := range coords {
		out = append(out, domain.GeoPoint{Lat: c[0], Lng: c[1]})
	}
	return out, nil
}
