// Package enrichment is a client for the lead enrichment endpoint, which
// returns a quality score and contact data for a single place.
package enrichment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/resilience"
)

// ErrNotFound is returned when the endpoint has no data for the place.
var ErrNotFound = eris.New("enrichment: place not found")

// Client enriches one place at a time.
type Client interface {
	Enrich(ctx context.Context, placeID string) (*Response, error)
}

// Response is the enrichment payload. Score is nil when the endpoint could
// not compute one; callers fill it in.
type Response struct {
	Score          *float64           `json:"score"`
	Grade          string             `json:"grade"`
	Breakdown      map[string]float64 `json:"breakdown"`
	Recommendation string             `json:"recommendation"`
	Email          string             `json:"email"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates an enrichment client for the given base URL.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Enrich(ctx context.Context, placeID string) (*Response, error) {
	if strings.TrimSpace(placeID) == "" {
		return nil, eris.New("enrichment: place id is required")
	}

	endpoint := c.baseURL + "/v1/enrich/" + url.PathEscape(placeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "enrichment: read response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, eris.Wrapf(ErrNotFound, "enrichment: %s", placeID)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		statusErr := eris.Errorf("enrichment: unexpected status %d: %s", resp.StatusCode, truncate(string(body), 200))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "enrichment: unmarshal response")
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
