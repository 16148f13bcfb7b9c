package routing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"school-transport-service/internal/domain"
	"school-transport-service/internal/platform/obs"
)

// GeocodeCache is a persistent address -> point cache. Address keys are
// normalized by the caller.
type GeocodeCache interface {
	GetMany(ctx context.Context, addresses []string) (map[string]domain.GeoPoint, error)
	PutMany(ctx context.Context, results map[string]domain.GeoPoint) error
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location latLng `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves an address, consulting the geocode cache first. A miss
// in the provider (ZERO_RESULTS) is reported as domain.ErrNotFound.
func (g *GoogleMapsProvider) Geocode(ctx context.Context, address string) (_ domain.GeoPoint, err error) {
	defer obs.Time(ctx, "google.Geocode")(&err)

	norm := normalize(address)
	if norm == "" {
		return domain.GeoPoint{}, errors.New("geocode: address must be non-empty")
	}

	if g.geocodeCache != nil {
		hits, err := g.geocodeCache.GetMany(ctx, []string{norm})
		if err != nil {
			return domain.GeoPoint{}, fmt.Errorf("geocode: read cache: %w", err)
		}
		if p, ok := hits[norm]; ok {
			return p, nil
		}
	}

	params := url.Values{}
	params.Set("address", norm)

	var decoded geocodeResponse
	if err := g.getJSON(ctx, "/maps/api/geocode/json", params, &decoded); err != nil {
		return domain.GeoPoint{}, fmt.Errorf("geocode request failed: %w", err)
	}

	switch {
	case decoded.Status == "ZERO_RESULTS" || (decoded.Status == "OK" && len(decoded.Results) == 0):
		return domain.GeoPoint{}, fmt.Errorf("geocode %q: %w", norm, domain.ErrNotFound)
	case decoded.Status != "OK":
		return domain.GeoPoint{}, fmt.Errorf("geocode %q: provider status %s", norm, decoded.Status)
	}

	p := decoded.Results[0].Geometry.Location.point()

	if g.geocodeCache != nil {
		if err := g.geocodeCache.PutMany(ctx, map[string]domain.GeoPoint{norm: p}); err != nil {
			log.Printf("geocode cache write failed: %v", err)
		}
	}

	return p, nil
}
