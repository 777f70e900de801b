// Package autopilot runs the search, enrich, filter, persist and campaign
// stages unattended for one sector and city.
package autopilot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/campaign"
	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/cost"
	"github.com/sells-group/leadgen/internal/distlock"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
)

var (
	// ErrInvalidRequest is returned for requests that fail validation.
	ErrInvalidRequest = eris.New("autopilot: invalid request")

	// ErrRunInFlight is returned when a run for the same sector and city is
	// already in progress.
	ErrRunInFlight = eris.New("autopilot: run already in flight")

	// ErrEnrichmentUnavailable is returned when every enrichment attempt of
	// a run failed, so no candidate could be scored.
	ErrEnrichmentUnavailable = eris.New("autopilot: every enrichment failed")
)

// Request configures one run. MaxLeads of 0 selects the configured default.
type Request struct {
	Sector       string  `json:"sector"`
	City         string  `json:"city"`
	MinScore     float64 `json:"min_score"`
	MaxLeads     int     `json:"max_leads"`
	RadiusKm     float64 `json:"radius_km"`
	Campaign     bool    `json:"campaign"`
	CampaignName string  `json:"campaign_name,omitempty"`
}

// Searcher finds candidates around a city.
type Searcher interface {
	SearchWithin(ctx context.Context, sector, city string, radiusKm float64) ([]model.Candidate, error)
}

// Enricher enriches candidates under the shared rate limit.
type Enricher interface {
	EnrichBatch(ctx context.Context, cands []model.Candidate, current map[string]model.EnrichmentResult, opts enrich.BatchOptions) (enrich.BatchResult, error)
}

// LeadSaver persists qualified candidates.
type LeadSaver interface {
	SaveToCRM(ctx context.Context, cands []model.CandidateWithScore) (leads.SaveResult, error)
}

// Campaigner chains qualified leads into an outreach campaign.
type Campaigner interface {
	Enabled() bool
	CreateCampaign(ctx context.Context, name string, cands []model.CandidateWithScore) (campaign.Result, error)
}

// RunStore records discoveries and finished runs.
type RunStore interface {
	RecordDiscoveries(ctx context.Context, sector, city string, cands []model.Candidate) (int, error)
	SaveRun(ctx context.Context, run model.AutoPilotRun) error
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGuard replaces the in-process in-flight guard.
func WithGuard(g distlock.Guard) Option {
	return func(o *Orchestrator) {
		o.guard = g
	}
}

// WithCampaigner enables the campaign step.
func WithCampaigner(c Campaigner) Option {
	return func(o *Orchestrator) {
		o.campaigns = c
	}
}

// WithCalculator sets the pricing used for run cost estimates.
func WithCalculator(c *cost.Calculator) Option {
	return func(o *Orchestrator) {
		o.calc = c
	}
}

// WithLimits overrides the default and maximum lead counts.
func WithLimits(cfg config.AutoPilotConfig) Option {
	return func(o *Orchestrator) {
		if cfg.DefaultMaxLeads > 0 {
			o.limits.DefaultMaxLeads = cfg.DefaultMaxLeads
		}
		if cfg.MaxLeadsCap > 0 {
			o.limits.MaxLeadsCap = cfg.MaxLeadsCap
		}
	}
}

// WithStateHook is called on every state transition.
func WithStateHook(fn func(runID string, s State)) Option {
	return func(o *Orchestrator) {
		o.onState = fn
	}
}

// WithClock sets the time source for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// Orchestrator executes auto-pilot runs.
type Orchestrator struct {
	search    Searcher
	enricher  Enricher
	saver     LeadSaver
	runs      RunStore
	campaigns Campaigner
	guard     distlock.Guard
	calc      *cost.Calculator
	limits    config.AutoPilotConfig
	onState   func(string, State)
	now       func() time.Time
	newID     func() string
}

// New creates an Orchestrator. Runs are guarded in-process unless WithGuard
// supplies a shared guard.
func New(s Searcher, e Enricher, saver LeadSaver, runs RunStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		search:   s,
		enricher: e,
		saver:    saver,
		runs:     runs,
		guard:    distlock.NewLocal(),
		calc:     cost.NewCalculator(cost.DefaultRates()),
		limits:   config.AutoPilotConfig{DefaultMaxLeads: 20, MaxLeadsCap: 100},
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GuardKey is the in-flight key for a sector and city.
func GuardKey(sector, city string) string {
	return "autopilot:" + leads.Normalize(sector) + "|" + leads.Normalize(city)
}

func (o *Orchestrator) normalize(req Request) (Request, error) {
	req.Sector = strings.TrimSpace(req.Sector)
	req.City = strings.TrimSpace(req.City)

	var errs []string
	if req.Sector == "" {
		errs = append(errs, "sector is required")
	}
	if req.City == "" {
		errs = append(errs, "city is required")
	}
	if req.MinScore < 0 || req.MinScore > 100 {
		errs = append(errs, "min_score must be between 0 and 100")
	}
	if req.MaxLeads < 0 {
		errs = append(errs, "max_leads must be > 0")
	}
	if req.RadiusKm < 0 {
		errs = append(errs, "radius_km must be >= 0")
	}
	if len(errs) > 0 {
		return req, eris.Wrap(ErrInvalidRequest, strings.Join(errs, "; "))
	}

	if req.MaxLeads == 0 {
		req.MaxLeads = o.limits.DefaultMaxLeads
	}
	if req.MaxLeads > o.limits.MaxLeadsCap {
		req.MaxLeads = o.limits.MaxLeadsCap
	}
	return req, nil
}

// RunAutoPilot searches, enriches every capped candidate, keeps those
// scoring at least MinScore, persists them and optionally campaigns them.
// The run is recorded once it finishes, whatever the outcome. A failed run
// is returned together with its error; counts reflect the work done up to
// the failure.
func (o *Orchestrator) RunAutoPilot(ctx context.Context, req Request) (model.AutoPilotRun, error) {
	req, err := o.normalize(req)
	if err != nil {
		return model.AutoPilotRun{}, err
	}

	release, err := o.guard.Acquire(ctx, GuardKey(req.Sector, req.City))
	if err != nil {
		if errors.Is(err, distlock.ErrHeld) {
			return model.AutoPilotRun{}, eris.Wrapf(ErrRunInFlight, "autopilot: %s in %s", req.Sector, req.City)
		}
		return model.AutoPilotRun{}, eris.Wrap(err, "autopilot: acquire guard")
	}
	defer release()

	run := model.AutoPilotRun{
		ID:             o.newID(),
		Sector:         req.Sector,
		City:           req.City,
		MinScore:       req.MinScore,
		MaxLeads:       req.MaxLeads,
		RadiusKm:       req.RadiusKm,
		HighValueLeads: []model.HighValueLead{},
		StartedAt:      o.now().UTC(),
	}

	log := zap.L().With(
		zap.String("stage", "autopilot"),
		zap.String("run_id", run.ID),
		zap.String("sector", run.Sector),
		zap.String("city", run.City),
	)
	m := newMachine(func(s State) {
		log.Debug("autopilot state", zap.String("state", string(s)))
		if o.onState != nil {
			o.onState(run.ID, s)
		}
	})

	usage := cost.Usage{}
	runErr := o.execute(ctx, req, &run, m, &usage, log)

	run.EstimatedCost = o.calc.Estimate(usage)
	run.CompletedAt = o.now().UTC()
	if runErr != nil {
		run.Outcome = model.OutcomeFailed
		run.Error = runErr.Error()
		_ = m.advance(StateFailed)
	} else {
		_ = m.advance(StateDone)
	}

	if err := o.runs.SaveRun(context.WithoutCancel(ctx), run); err != nil {
		log.Warn("save run failed", zap.Error(err))
	}

	log.Info("autopilot run finished",
		zap.String("outcome", string(run.Outcome)),
		zap.Int("found", run.LeadsFound),
		zap.Int("enriched", run.LeadsEnriched),
		zap.Int("failed", run.LeadsFailed),
		zap.Int("saved", run.LeadsSaved),
		zap.Int("skipped", run.LeadsSkipped),
		zap.Int("campaigned", run.LeadsCampaigned),
		zap.Float64("estimated_cost", run.EstimatedCost),
	)
	return run, runErr
}

func (o *Orchestrator) execute(ctx context.Context, req Request, run *model.AutoPilotRun, m *machine, usage *cost.Usage, log *zap.Logger) error {
	// Search.
	if err := m.advance(StateSearching); err != nil {
		return err
	}
	usage.SearchCalls++
	cands, err := o.search.SearchWithin(ctx, req.Sector, req.City, req.RadiusKm)
	if err != nil {
		return eris.Wrap(err, "autopilot: search")
	}
	run.LeadsFound = len(cands)

	if _, err := o.runs.RecordDiscoveries(ctx, req.Sector, req.City, cands); err != nil {
		log.Warn("record discoveries failed", zap.Error(err))
	}

	if len(cands) == 0 {
		run.Outcome = model.OutcomeNoCandidates
		return nil
	}
	if len(cands) > req.MaxLeads {
		cands = cands[:req.MaxLeads]
	}

	// Enrich every capped candidate from scratch.
	if err := m.advance(StateEnriching); err != nil {
		return err
	}
	batch, err := o.enricher.EnrichBatch(ctx, cands, map[string]model.EnrichmentResult{}, enrich.BatchOptions{
		OnProgress: func(p enrich.Progress) {
			log.Debug("autopilot enrichment progress",
				zap.Int("processed", p.Processed),
				zap.Int("total", p.Total),
			)
		},
	})
	usage.EnrichCalls += batch.Attempted
	run.LeadsEnriched = batch.Enriched
	run.LeadsFailed = batch.Failed
	if err != nil {
		return eris.Wrap(err, "autopilot: enrich")
	}
	if batch.Enriched == 0 && batch.Failed > 0 {
		return eris.Wrapf(ErrEnrichmentUnavailable, "autopilot: %d of %d candidates failed", batch.Failed, batch.Attempted)
	}

	// Attach results.
	if err := m.advance(StateScoring); err != nil {
		return err
	}
	results := batch.Results()
	scored := make([]model.CandidateWithScore, 0, len(cands))
	for _, c := range cands {
		cws := model.CandidateWithScore{Candidate: c, Sector: req.Sector, City: req.City}
		if r, ok := results[c.PlaceID]; ok {
			cws.Enrichment = &r
		}
		scored = append(scored, cws)
	}

	// Filter. Candidates without a result never qualify.
	if err := m.advance(StateFiltering); err != nil {
		return err
	}
	qualified := Qualify(scored, req.MinScore)
	run.HighValueLeads = HighValue(qualified)
	if len(qualified) == 0 {
		run.Outcome = model.OutcomeNoneQualified
		return nil
	}

	// Persist.
	if err := m.advance(StatePersisting); err != nil {
		return err
	}
	saved, err := o.saver.SaveToCRM(ctx, qualified)
	if err != nil {
		return eris.Wrap(err, "autopilot: persist")
	}
	run.LeadsSaved = saved.Created
	run.LeadsSkipped = saved.Skipped

	// Campaign.
	if req.Campaign {
		if o.campaigns == nil || !o.campaigns.Enabled() {
			log.Warn("campaign requested but no campaign driver is configured")
		} else {
			if err := m.advance(StateCampaigning); err != nil {
				return err
			}
			name := req.CampaignName
			if strings.TrimSpace(name) == "" {
				name = DefaultCampaignName(req.Sector, req.City, run.StartedAt)
			}
			res, err := o.campaigns.CreateCampaign(ctx, name, qualified)
			run.CampaignID = res.CampaignID
			run.LeadsCampaigned = res.Assigned
			if err != nil {
				return eris.Wrap(err, "autopilot: campaign")
			}
		}
	}

	run.Outcome = model.OutcomeCompleted
	return nil
}

// Qualify keeps enriched candidates scoring at least minScore.
func Qualify(cands []model.CandidateWithScore, minScore float64) []model.CandidateWithScore {
	out := make([]model.CandidateWithScore, 0, len(cands))
	for _, c := range cands {
		if score, ok := c.Score(); ok && score >= minScore {
			out = append(out, c)
		}
	}
	return out
}

// HighValue summarizes qualified leads, best score first.
func HighValue(qualified []model.CandidateWithScore) []model.HighValueLead {
	out := make([]model.HighValueLead, 0, len(qualified))
	for _, c := range qualified {
		score, _ := c.Score()
		hv := model.HighValueLead{
			PlaceID: c.PlaceID,
			Name:    c.Name,
			Score:   score,
			Email:   c.ContactEmail(),
		}
		if c.Enrichment != nil {
			hv.Grade = c.Enrichment.Grade
		}
		out = append(out, hv)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// DefaultCampaignName names a campaign created by a run.
func DefaultCampaignName(sector, city string, at time.Time) string {
	return fmt.Sprintf("Auto-pilot %s %s %s", sector, city, at.Format("2006-01-02"))
}
