// Package geocode resolves city names to center coordinates via the Google
// Geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultGoogleGeocodeURL = "https://maps.googleapis.com/maps/api/geocode/json"

// ErrNotFound is returned when the API has no match for the query.
var ErrNotFound = eris.New("geocode: no match")

// Client geocodes free-form place names.
type Client interface {
	// Locate returns the center of the named place.
	Locate(ctx context.Context, query string) (*Result, error)
}

// Result holds the geocoding output for a query.
type Result struct {
	Latitude         float64
	Longitude        float64
	FormattedAddress string
	Quality          string // "rooftop", "range", "centroid", "approximate"
}

// Option configures the geocoder.
type Option func(*geocoder)

// WithBaseURL overrides the Geocoding API endpoint.
func WithBaseURL(u string) Option {
	return func(g *geocoder) {
		if u != "" {
			g.baseURL = u
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *geocoder) {
		g.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(g *geocoder) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

type geocoder struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter

	mu    sync.RWMutex
	cache map[string]Result
}

// NewClient creates a geocoding Client. Successful lookups are cached for
// the life of the client; city centers do not move.
func NewClient(apiKey string, opts ...Option) Client {
	g := &geocoder{
		apiKey:     apiKey,
		baseURL:    defaultGoogleGeocodeURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(10, 10),
		cache:      make(map[string]Result),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type googleGeocodeResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string `json:"formatted_address"`
}

func (g *geocoder) Locate(ctx context.Context, query string) (*Result, error) {
	key := cacheKey(query)
	if key == "" {
		return nil, eris.New("geocode: empty query")
	}
	if g.apiKey == "" {
		return nil, eris.New("geocode: google api key not configured")
	}

	g.mu.RLock()
	cached, ok := g.cache[key]
	g.mu.RUnlock()
	if ok {
		return &cached, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	params := url.Values{
		"address": {strings.TrimSpace(query)},
		"key":     {g.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: google returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var gr googleGeocodeResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	switch gr.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, eris.Wrapf(ErrNotFound, "geocode: %q", query)
	default:
		return nil, eris.Errorf("geocode: google status %s", gr.Status)
	}
	if len(gr.Results) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "geocode: %q", query)
	}

	first := gr.Results[0]
	result := Result{
		Latitude:         first.Geometry.Location.Lat,
		Longitude:        first.Geometry.Location.Lng,
		FormattedAddress: first.FormattedAddress,
		Quality:          locationTypeToQuality(first.Geometry.LocationType),
	}

	g.mu.Lock()
	g.cache[key] = result
	g.mu.Unlock()

	return &result, nil
}

func cacheKey(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// locationTypeToQuality maps Google's location_type to our quality taxonomy.
func locationTypeToQuality(locType string) string {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return "rooftop"
	case "RANGE_INTERPOLATED":
		return "range"
	case "GEOMETRIC_CENTER":
		return "centroid"
	default:
		return "approximate"
	}
}
