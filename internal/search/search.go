// Package search queries the places directory for businesses matching a
// sector in a city.
package search

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/geocode"
	"github.com/sells-group/leadgen/pkg/google"
)

// ErrInvalidQuery is returned when the sector or city is empty.
var ErrInvalidQuery = eris.New("search: sector and city are required")

// Searcher returns candidates for a sector/city pair.
type Searcher interface {
	Search(ctx context.Context, sector, city string) ([]model.Candidate, error)
	SearchWithin(ctx context.Context, sector, city string, radiusKm float64) ([]model.Candidate, error)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithGeocoder enables radius-biased searches.
func WithGeocoder(g geocode.Client) Option {
	return func(a *Adapter) {
		a.geocoder = g
	}
}

// WithMaxResults bounds the number of candidates per search (1..20).
func WithMaxResults(n int) Option {
	return func(a *Adapter) {
		a.maxResults = n
	}
}

// WithLanguage sets the languageCode sent with each request.
func WithLanguage(lang string) Option {
	return func(a *Adapter) {
		a.language = lang
	}
}

// Adapter issues one Places Text Search per call. It never retries; any
// failure is returned to the caller.
type Adapter struct {
	places     google.Client
	geocoder   geocode.Client
	maxResults int
	language   string
}

// New creates a search Adapter.
func New(places google.Client, opts ...Option) *Adapter {
	a := &Adapter{
		places:     places,
		maxResults: google.MaxResultCount,
	}
	for _, o := range opts {
		o(a)
	}
	a.maxResults = boundResults(a.maxResults)
	return a
}

// Search returns up to the configured bound of candidates for
// "<sector> in <city>".
func (a *Adapter) Search(ctx context.Context, sector, city string) ([]model.Candidate, error) {
	return a.SearchWithin(ctx, sector, city, 0)
}

// SearchWithin biases the search toward a circle of radiusKm around the
// city center. Without a geocoder or with radiusKm <= 0 it is a plain Search.
func (a *Adapter) SearchWithin(ctx context.Context, sector, city string, radiusKm float64) ([]model.Candidate, error) {
	sector = strings.TrimSpace(sector)
	city = strings.TrimSpace(city)
	if sector == "" || city == "" {
		return nil, ErrInvalidQuery
	}

	log := zap.L().With(
		zap.String("stage", "search"),
		zap.String("sector", sector),
		zap.String("city", city),
	)

	req := google.TextSearchRequest{
		TextQuery:      sector + " in " + city,
		MaxResultCount: a.maxResults,
		LanguageCode:   a.language,
	}

	if radiusKm > 0 && a.geocoder != nil {
		loc, err := a.geocoder.Locate(ctx, city)
		if err != nil {
			return nil, eris.Wrapf(err, "search: locate %q", city)
		}
		req.LocationBias = &google.LocationBias{
			Circle: google.Circle{
				Center: google.LatLng{Latitude: loc.Latitude, Longitude: loc.Longitude},
				Radius: radiusKm * 1000,
			},
		}
	}

	resp, err := a.places.TextSearch(ctx, req)
	if err != nil {
		return nil, eris.Wrapf(err, "search: text search %q", req.TextQuery)
	}
	if resp == nil {
		return nil, eris.Errorf("search: empty response for %q", req.TextQuery)
	}

	cands := make([]model.Candidate, 0, len(resp.Places))
	seen := make(map[string]bool, len(resp.Places))
	for _, p := range resp.Places {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		cands = append(cands, fromPlace(p))
		if len(cands) == a.maxResults {
			break
		}
	}

	log.Info("search complete",
		zap.Int("returned", len(resp.Places)),
		zap.Int("candidates", len(cands)),
		zap.Float64("radius_km", radiusKm),
	)
	return cands, nil
}

// FilterByRating returns the candidates rated at least minRating. The input
// slice is not modified.
func FilterByRating(cands []model.Candidate, minRating float64) []model.Candidate {
	out := make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.Rating >= minRating {
			out = append(out, c)
		}
	}
	return out
}

func fromPlace(p google.Place) model.Candidate {
	var types []string
	if len(p.Types) > 0 {
		types = append([]string(nil), p.Types...)
	}
	return model.Candidate{
		PlaceID:         p.ID,
		Name:            strings.TrimSpace(p.DisplayName.Text),
		Address:         strings.TrimSpace(p.FormattedAddress),
		Phone:           p.Phone(),
		Website:         p.WebsiteURI,
		Rating:          p.Rating,
		ReviewCount:     p.UserRatingCount,
		Types:           types,
		PrimaryCategory: p.PrimaryType,
		Source:          model.SourceGooglePlaces,
	}
}

func boundResults(n int) int {
	if n <= 0 || n > google.MaxResultCount {
		return google.MaxResultCount
	}
	return n
}
