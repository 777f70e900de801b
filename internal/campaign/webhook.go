package campaign

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
)

// WebhookLead is one lead in a webhook payload.
type WebhookLead struct {
	PlaceID string      `json:"place_id"`
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Phone   string      `json:"phone,omitempty"`
	Website string      `json:"website,omitempty"`
	Address string      `json:"address,omitempty"`
	Score   *float64    `json:"score,omitempty"`
	Grade   model.Grade `json:"grade,omitempty"`
}

// WebhookPayload is the body POSTed to the campaign webhook.
type WebhookPayload struct {
	CampaignID string        `json:"campaign_id"`
	Name       string        `json:"name"`
	Leads      []WebhookLead `json:"leads"`
}

// WebhookOption configures a Webhook.
type WebhookOption func(*Webhook)

// WithWebhookHTTPClient sets the HTTP client.
func WithWebhookHTTPClient(hc *http.Client) WebhookOption {
	return func(w *Webhook) {
		if hc != nil {
			w.http = hc
		}
	}
}

// WithWebhookRetry sets the retry policy for transient delivery failures.
func WithWebhookRetry(cfg resilience.RetryConfig) WebhookOption {
	return func(w *Webhook) {
		w.retry = cfg
	}
}

// Webhook posts the campaign list to an HTTP endpoint.
type Webhook struct {
	url   string
	token string
	http  *http.Client
	retry resilience.RetryConfig
	now   func() time.Time
}

// NewWebhook creates a webhook dispatcher.
func NewWebhook(url, token string, opts ...WebhookOption) *Webhook {
	w := &Webhook{
		url:   url,
		token: token,
		http:  &http.Client{Timeout: 15 * time.Second},
		retry: resilience.DefaultRetryConfig(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	if w.retry.OnRetry == nil {
		w.retry.OnRetry = resilience.RetryLogger("campaign", "webhook")
	}
	return w
}

// Name implements Dispatcher.
func (w *Webhook) Name() string { return "webhook" }

// Dispatch implements Dispatcher. Every lead is assigned once the endpoint
// accepts the payload.
func (w *Webhook) Dispatch(ctx context.Context, c Campaign, cands []model.CandidateWithScore) ([]model.CampaignAssignment, error) {
	payload := WebhookPayload{CampaignID: c.ID, Name: c.Name, Leads: make([]WebhookLead, len(cands))}
	for i, cand := range cands {
		wl := WebhookLead{
			PlaceID: cand.PlaceID,
			Name:    cand.Name,
			Email:   cand.ContactEmail(),
			Phone:   cand.Phone,
			Website: cand.Website,
			Address: cand.Address,
		}
		if score, ok := cand.Score(); ok {
			wl.Score = &score
			wl.Grade = cand.Enrichment.Grade
		}
		payload.Leads[i] = wl
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "webhook: marshal payload")
	}

	if err := resilience.Do(ctx, w.retry, func(ctx context.Context) error {
		return w.post(ctx, body)
	}); err != nil {
		return nil, err
	}

	now := w.now()
	out := make([]model.CampaignAssignment, len(cands))
	for i, cand := range cands {
		out[i] = assign(c, cand, now)
	}
	return out, nil
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "webhook: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return eris.Wrap(err, "webhook: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		statusErr := eris.Errorf("webhook: unexpected status %d: %s", resp.StatusCode, string(msg))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return statusErr
	}
	return nil
}
