// Package geo holds pure distance calculations on the WGS84 sphere.
package geo

import (
	"math"
	"school-transport-service/internal/domain"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// Nearest is the closest point of a polyline to a query point.
// Index is the vertex index (or the index of the segment start when the
// point was projected onto a segment). Index is -1 for an empty polyline.
type Nearest struct {
	Point          domain.GeoPoint
	DistanceMeters float64
	Index          int
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b domain.GeoPoint) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng

	// Rounding can push h marginally above 1 for antipodal points.
	h = math.Min(1, h)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// NearestVertex returns the polyline vertex closest to p.
// An empty polyline yields a +Inf distance.
func NearestVertex(p domain.GeoPoint, line []domain.GeoPoint) Nearest {
	best := Nearest{DistanceMeters: math.Inf(1), Index: -1}
	for i, v := range line {
		if d := DistanceMeters(p, v); d < best.DistanceMeters {
			best = Nearest{Point: v, DistanceMeters: d, Index: i}
		}
	}
	return best
}

// NearestPointOnPolyline projects p onto every segment of line and returns
// the closest projected point. Projection happens in a local equirectangular
// plane centred on p; the returned distance is the haversine distance to the
// projected point. A single-vertex line behaves like NearestVertex and an
// empty line yields a +Inf distance.
func NearestPointOnPolyline(p domain.GeoPoint, line []domain.GeoPoint) Nearest {
	switch len(line) {
	case 0:
		return Nearest{DistanceMeters: math.Inf(1), Index: -1}
	case 1:
		return NearestVertex(p, line)
	}

	cosLat := math.Cos(radians(p.Lat))
	toXY := func(g domain.GeoPoint) (float64, float64) {
		return wrapLng(g.Lng-p.Lng) * cosLat, g.Lat - p.Lat
	}

	best := Nearest{DistanceMeters: math.Inf(1), Index: -1}
	for i := 0; i+1 < len(line); i++ {
		ax, ay := toXY(line[i])
		bx, by := toXY(line[i+1])
		dx, dy := bx-ax, by-ay

		t := 0.0
		if l2 := dx*dx + dy*dy; l2 > 0 {
			t = -(ax*dx + ay*dy) / l2
			t = math.Max(0, math.Min(1, t))
		}

		var q domain.GeoPoint
		switch {
		case t == 0:
			q = line[i]
		case t == 1:
			q = line[i+1]
		default:
			q = domain.GeoPoint{Lat: p.Lat + ay + t*dy, Lng: p.Lng}
			if cosLat != 0 {
				q.Lng = wrapLng(p.Lng + (ax+t*dx)/cosLat)
			}
		}

		if d := DistanceMeters(p, q); d < best.DistanceMeters {
			best = Nearest{Point: q, DistanceMeters: d, Index: i}
		}
	}
	return best
}

// wrapLng normalizes a longitude delta into [-180, 180).
func wrapLng(d float64) float64 {
	if d >= -180 && d < 180 {
		return d
	}
	return math.Mod(math.Mod(d+180, 360)+360, 360) - 180
}
