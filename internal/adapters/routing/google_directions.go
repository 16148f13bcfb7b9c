package routing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/platform/obs"
	"school-transport-service/internal/ports"
	"strings"
)

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (l latLng) point() domain.GeoPoint { return domain.GeoPoint{Lat: l.Lat, Lng: l.Lng} }

type valueField struct {
	Value float64 `json:"value"`
}

type directionsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Routes       []struct {
		WaypointOrder    []int `json:"waypoint_order"`
		OverviewPolyline struct {
			Points string `json:"points"`
		} `json:"overview_polyline"`
		Legs []struct {
			Distance      valueField `json:"distance"`
			Duration      valueField `json:"duration"`
			StartLocation latLng     `json:"start_location"`
			EndLocation   latLng     `json:"end_location"`
		} `json:"legs"`
	} `json:"routes"`
}

// MultiStopRoute requests a driving route through all waypoints from the
// Directions API. A non-OK provider status is returned in the result, not
// as an error; errors are reserved for transport and decoding failures.
func (g *GoogleMapsProvider) MultiStopRoute(
	ctx context.Context,
	req ports.MultiStopRequest,
) (_ ports.MultiStopResult, err error) {
	defer obs.Time(ctx, "google.MultiStopRoute")(&err)

	if len(req.Waypoints) == 0 {
		return ports.MultiStopResult{}, errors.New("multi-stop route: no waypoints")
	}

	wps := make([]string, 0, len(req.Waypoints)+1)
	if req.OptimizeOrder {
		wps = append(wps, "optimize:true")
	}
	for _, w := range req.Waypoints {
		wps = append(wps, w.String())
	}

	params := url.Values{}
	params.Set("origin", req.Origin.String())
	params.Set("destination", req.Destination.String())
	params.Set("waypoints", strings.Join(wps, "|"))
	params.Set("mode", "driving")

	var decoded directionsResponse
	if err := g.getJSON(ctx, "/maps/api/directions/json", params, &decoded); err != nil {
		return ports.MultiStopResult{}, fmt.Errorf("directions request failed: %w", err)
	}

	if decoded.Status != ports.StatusOK || len(decoded.Routes) == 0 {
		status := decoded.Status
		if status == "" || status == ports.StatusOK {
			status = "NO_ROUTE"
		}
		return ports.MultiStopResult{Status: status}, nil
	}

	route := decoded.Routes[0]
	out := ports.MultiStopResult{
		Order:            route.WaypointOrder,
		Legs:             make([]ports.Leg, 0, len(route.Legs)),
		OverviewGeometry: route.OverviewPolyline.Points,
		Status:           decoded.Status,
	}

	// Without optimize:true the provider omits waypoint_order.
	if len(out.Order) == 0 && !req.OptimizeOrder {
		out.Order = make([]int, len(req.Waypoints))
		for i := range out.Order {
			out.Order[i] = i
		}
	}

	for _, l := range route.Legs {
		out.Legs = append(out.Legs, ports.Leg{
			DistanceMeters:  roundInt(l.Distance.Value),
			DurationSeconds: roundInt(l.Duration.Value),
			StartLocation:   l.StartLocation.point(),
			EndLocation:     l.EndLocation.point(),
		})
	}

	return out, nil
}
