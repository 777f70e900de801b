package leads

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/pkg/salesforce"
)

// SaveResult reports how a bulk save was resolved.
type SaveResult struct {
	Created int `json:"created_count"`
	Skipped int `json:"skipped_count"`
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultScore sets the score given to un-enriched candidates.
func WithDefaultScore(score float64) Option {
	return func(s *Service) {
		if score > 0 {
			s.defaultScore = score
		}
	}
}

// WithRetry sets the wholesale retry policy for bulk saves.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(s *Service) {
		s.retry = cfg
	}
}

// WithSalesforce mirrors newly created leads into Salesforce.
func WithSalesforce(c salesforce.Client) Option {
	return func(s *Service) {
		s.sf = c
	}
}

// WithClock sets the time source for created_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service persists candidates as leads.
type Service struct {
	store        Store
	sf           salesforce.Client
	retry        resilience.RetryConfig
	defaultScore float64
	now          func() time.Time
	newID        func() string
}

// NewService creates a Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:        store,
		retry:        resilience.DefaultRetryConfig(),
		defaultScore: DefaultScore,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.retry.OnRetry == nil {
		s.retry.OnRetry = resilience.RetryLogger("store", "insert_leads")
	}
	return s
}

// Store returns the underlying lead store.
func (s *Service) Store() Store {
	return s.store
}

// SaveToCRM persists every candidate whose identity is not yet stored.
// Duplicates, including duplicates inside leads, are counted as skipped. The
// whole batch is one transaction and is retried as a whole on transient
// failures; on error no candidate is saved.
func (s *Service) SaveToCRM(ctx context.Context, cands []model.CandidateWithScore) (SaveResult, error) {
	if len(cands) == 0 {
		return SaveResult{}, nil
	}

	now := s.now().UTC()
	records := make([]model.LeadRecord, 0, len(cands))
	for _, c := range cands {
		if c.PlaceID == "" && c.Name == "" {
			return SaveResult{}, eris.New("leads: candidate has neither place id nor name")
		}
		rec := ToLeadRecord(c, s.defaultScore)
		rec.ID = s.newID()
		rec.CreatedAt = now
		records = append(records, rec)
	}

	created, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (int, error) {
		return s.store.InsertLeads(ctx, records)
	})
	if err != nil {
		return SaveResult{}, eris.Wrap(err, "leads: save to crm")
	}

	res := SaveResult{Created: created, Skipped: len(records) - created}
	zap.L().Info("leads saved",
		zap.String("stage", "persist"),
		zap.Int("submitted", len(records)),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped),
	)

	if s.sf != nil && created > 0 {
		s.mirror(ctx, records)
	}
	return res, nil
}

// UpdateStatus moves a lead through the funnel.
func (s *Service) UpdateStatus(ctx context.Context, id string, status model.LeadStatus) error {
	if !status.Valid() {
		return eris.Wrapf(ErrInvalidStatus, "leads: status %q", status)
	}
	if err := s.store.UpdateLeadStatus(ctx, id, status); err != nil {
		return eris.Wrapf(err, "leads: update status %s", id)
	}
	if s.sf != nil {
		s.mirrorStatus(ctx, id, status)
	}
	return nil
}

// Recent returns the newest leads.
func (s *Service) Recent(ctx context.Context, limit int) ([]model.LeadRecord, error) {
	out, err := s.store.ListLeads(ctx, LeadFilter{Limit: limit})
	if err != nil {
		return nil, eris.Wrap(err, "leads: list recent")
	}
	return out, nil
}

// List returns leads matching f.
func (s *Service) List(ctx context.Context, f LeadFilter) ([]model.LeadRecord, error) {
	out, err := s.store.ListLeads(ctx, f)
	if err != nil {
		return nil, eris.Wrap(err, "leads: list")
	}
	return out, nil
}
