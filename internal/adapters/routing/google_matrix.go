package routing

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/platform/obs"
	"school-transport-service/internal/ports"
)

type matrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status            string      `json:"status"`
			Distance          valueField  `json:"distance"`
			Duration          valueField  `json:"duration"`
			DurationInTraffic *valueField `json:"duration_in_traffic"`
		} `json:"elements"`
	} `json:"rows"`
}

// PointToPointETA retrieves the driving duration between two points using a
// single-cell Distance Matrix request. Traffic-aware duration is preferred
// when the provider returns one.
func (g *GoogleMapsProvider) PointToPointETA(
	ctx context.Context,
	origin domain.GeoPoint,
	destination domain.GeoPoint,
) (_ ports.ETAResult, err error) {
	defer obs.Time(ctx, "google.PointToPointETA")(&err)

	params := url.Values{}
	params.Set("origins", origin.String())
	params.Set("destinations", destination.String())
	params.Set("mode", "driving")
	params.Set("departure_time", "now")

	var mr matrixResponse
	if err := g.getJSON(ctx, "/maps/api/distancematrix/json", params, &mr); err != nil {
		return ports.ETAResult{}, fmt.Errorf("matrix request failed: %w", err)
	}

	if mr.Status != ports.StatusOK {
		return ports.ETAResult{Status: mr.Status}, nil
	}

	if len(mr.Rows) != 1 || len(mr.Rows[0].Elements) != 1 {
		return ports.ETAResult{}, fmt.Errorf("expected a 1x1 matrix; got %d rows", len(mr.Rows))
	}

	el := mr.Rows[0].Elements[0]
	if el.Status != ports.StatusOK {
		return ports.ETAResult{Status: el.Status}, nil
	}

	seconds := el.Duration.Value
	if el.DurationInTraffic != nil {
		seconds = el.DurationInTraffic.Value
	}

	// Provider metrics may be fractional; round for domain consistency.
	return ports.ETAResult{
		DurationSeconds: roundInt(seconds),
		DistanceMeters:  roundInt(el.Distance.Value),
		Status:          ports.StatusOK,
	}, nil
}

func roundInt(f float64) int { return int(math.Round(f)) }
