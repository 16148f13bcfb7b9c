package geo

import (
	"math"
	"school-transport-service/internal/domain"
	"testing"
)

func TestDistanceMetersSymmetry(t *testing.T) {
	points := []domain.GeoPoint{
		{Lat: 0, Lng: 0},
		{Lat: 33.4484, Lng: -112.0740},
		{Lat: -33.8688, Lng: 151.2093},
		{Lat: 51.5074, Lng: -0.1278},
		{Lat: 89.9, Lng: 179.9},
	}

	for _, a := range points {
		if d := DistanceMeters(a, a); d != 0 {
			t.Fatalf("DistanceMeters(%v, %v) = %v, want 0", a, a, d)
		}
		for _, b := range points {
			ab := DistanceMeters(a, b)
			ba := DistanceMeters(b, a)
			if ab != ba {
				t.Fatalf("asymmetric distance %v -> %v: %v vs %v", a, b, ab, ba)
			}
		}
	}
}

func TestDistanceMetersKnownValues(t *testing.T) {
	// One degree of longitude on the equator.
	got := DistanceMeters(domain.GeoPoint{Lat: 0, Lng: 0}, domain.GeoPoint{Lat: 0, Lng: 1})
	want := EarthRadiusMeters * math.Pi / 180
	if math.Abs(got-want) > 0.01 {
		t.Fatalf("distance = %v, want %v", got, want)
	}

	got = DistanceMeters(domain.GeoPoint{Lat: 0, Lng: 0}, domain.GeoPoint{Lat: 0, Lng: 180})
	want = EarthRadiusMeters * math.Pi
	if math.Abs(got-want) > 0.01 {
		t.Fatalf("antipodal distance = %v, want %v", got, want)
	}
}

func TestNearestVertex(t *testing.T) {
	line := []domain.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}, {Lat: 0, Lng: 2}}

	n := NearestVertex(domain.GeoPoint{Lat: 0.001, Lng: 1.1}, line)
	if n.Index != 1 {
		t.Fatalf("index = %d, want 1", n.Index)
	}
	if n.Point != line[1] {
		t.Fatalf("point = %v, want %v", n.Point, line[1])
	}

	empty := NearestVertex(domain.GeoPoint{}, nil)
	if !math.IsInf(empty.DistanceMeters, 1) || empty.Index != -1 {
		t.Fatalf("empty polyline = %+v, want +Inf and index -1", empty)
	}
}

func TestNearestPointOnPolylineStraightLine(t *testing.T) {
	line := []domain.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 10}}

	tests := []struct {
		name string
		p    domain.GeoPoint
	}{
		{"near", domain.GeoPoint{Lat: 0.001, Lng: 5}},
		{"far", domain.GeoPoint{Lat: 0.01, Lng: 5}},
		{"south", domain.GeoPoint{Lat: -0.01, Lng: 2.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NearestPointOnPolyline(tt.p, line)
			want := DistanceMeters(tt.p, domain.GeoPoint{Lat: 0, Lng: tt.p.Lng})
			if math.Abs(n.DistanceMeters-want) > want*0.01 {
				t.Fatalf("distance = %v, want ~%v", n.DistanceMeters, want)
			}
			if math.Abs(n.Point.Lng-tt.p.Lng) > 1e-9 || math.Abs(n.Point.Lat) > 1e-9 {
				t.Fatalf("projected point = %v", n.Point)
			}
		})
	}
}

func TestNearestPointOnPolylineClampsToEndpoints(t *testing.T) {
	line := []domain.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 1}}
	p := domain.GeoPoint{Lat: 0, Lng: 1.5}

	n := NearestPointOnPolyline(p, line)
	if n.Point != line[1] {
		t.Fatalf("point = %v, want %v", n.Point, line[1])
	}
	if want := DistanceMeters(p, line[1]); n.DistanceMeters != want {
		t.Fatalf("distance = %v, want %v", n.DistanceMeters, want)
	}
}

func TestNearestPointOnPolylineNeverWorseThanVertex(t *testing.T) {
	line := []domain.GeoPoint{
		{Lat: 33.45, Lng: -112.07},
		{Lat: 33.46, Lng: -112.05},
		{Lat: 33.48, Lng: -112.05},
		{Lat: 33.49, Lng: -112.02},
	}
	points := []domain.GeoPoint{
		{Lat: 33.455, Lng: -112.06},
		{Lat: 33.47, Lng: -112.04},
		{Lat: 33.50, Lng: -112.00},
		{Lat: 33.40, Lng: -112.10},
	}

	for _, p := range points {
		seg := NearestPointOnPolyline(p, line)
		vtx := NearestVertex(p, line)
		if seg.DistanceMeters > vtx.DistanceMeters+1e-6 {
			t.Fatalf("projection %v worse than vertex %v for %v", seg.DistanceMeters, vtx.DistanceMeters, p)
		}
	}
}

func TestNearestPointOnPolylineDegenerate(t *testing.T) {
	p := domain.GeoPoint{Lat: 1, Lng: 1}

	if n := NearestPointOnPolyline(p, nil); !math.IsInf(n.DistanceMeters, 1) {
		t.Fatalf("empty distance = %v, want +Inf", n.DistanceMeters)
	}

	single := []domain.GeoPoint{{Lat: 0, Lng: 0}}
	if got, want := NearestPointOnPolyline(p, single), NearestVertex(p, single); got != want {
		t.Fatalf("single vertex = %+v, want %+v", got, want)
	}

	repeated := []domain.GeoPoint{{Lat: 0, Lng: 0}, {Lat: 0, Lng: 0}}
	if n := NearestPointOnPolyline(p, repeated); n.Point != repeated[0] {
		t.Fatalf("zero-length segment point = %v", n.Point)
	}
}

func TestPolylineRoundTrip(t *testing.T) {
	// Reference value from the Google polyline algorithm documentation.
	const encoded = "_p~iF~ps|U_ulLnnqC_mqNvxq`@"
	points, err := DecodePolyline(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.GeoPoint{
		{Lat: 38.5, Lng: -120.2},
		{Lat: 40.7, Lng: -120.95},
		{Lat: 43.252, Lng: -126.453},
	}
	if len(points) != len(want) {
		t.Fatalf("len(points) = %d, want %d", len(points), len(want))
	}
	for i := range want {
		if math.Abs(points[i].Lat-want[i].Lat) > 1e-5 || math.Abs(points[i].Lng-want[i].Lng) > 1e-5 {
			t.Fatalf("points[%d] = %v, want %v", i, points[i], want[i])
		}
	}

	if got := EncodePolyline(want); got != encoded {
		t.Fatalf("encode = %q, want %q", got, encoded)
	}
}

func TestDecodePolylineEmpty(t *testing.T) {
	points, err := DecodePolyline("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("len(points) = %d, want 0", len(points))
	}
}
