package routing

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const defaultGoogleBaseURL = "https://maps.googleapis.com"

// GoogleMapsProvider implements RoutingProvider and Geocoder using the
// Google Maps web services.
//
// It coordinates:
//   - Multi-stop optimization via the Directions API
//   - Point-to-point ETAs via the Distance Matrix API
//   - Address geocoding with a persistent geocode cache
//   - Retry with exponential backoff on transient failures
//
// The provider is safe for concurrent use.
type GoogleMapsProvider struct {
	session        *http.Client
	apiKey         string
	baseURL        string
	geocodeCache   GeocodeCache
	maxAttempts    int
	initialBackoff time.Duration
}

type Option func(*GoogleMapsProvider)

// WithBaseURL points the provider at a different host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(g *GoogleMapsProvider) { g.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(c *http.Client) Option {
	return func(g *GoogleMapsProvider) { g.session = c }
}

func WithGeocodeCache(c GeocodeCache) Option {
	return func(g *GoogleMapsProvider) { g.geocodeCache = c }
}

func WithRetry(maxAttempts int, initialBackoff time.Duration) Option {
	return func(g *GoogleMapsProvider) {
		if maxAttempts > 0 {
			g.maxAttempts = maxAttempts
		}
		g.initialBackoff = initialBackoff
	}
}

func NewGoogleMapsProvider(apiKey string, opts ...Option) (*GoogleMapsProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("google maps api key is empty")
	}

	provider := &GoogleMapsProvider{
		session:        &http.Client{Timeout: 10 * time.Second},
		apiKey:         apiKey,
		baseURL:        defaultGoogleBaseURL,
		maxAttempts:    4,
		initialBackoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(provider)
	}

	return provider, nil
}

// normalize ensures consistent cache keys by collapsing whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
