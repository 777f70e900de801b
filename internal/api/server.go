// Package api exposes the lead pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sells-group/leadgen/internal/autopilot"
	"github.com/sells-group/leadgen/internal/campaign"
	"github.com/sells-group/leadgen/internal/config"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
)

// Searcher finds candidates.
type Searcher interface {
	SearchWithin(ctx context.Context, sector, city string, radiusKm float64) ([]model.Candidate, error)
}

// Enricher enriches one candidate or a batch under the shared rate limit.
type Enricher interface {
	Enrich(ctx context.Context, c model.Candidate) (model.EnrichmentResult, error)
	EnrichBatch(ctx context.Context, cands []model.Candidate, current map[string]model.EnrichmentResult, opts enrich.BatchOptions) (enrich.BatchResult, error)
}

// LeadService persists and reads leads.
type LeadService interface {
	SaveToCRM(ctx context.Context, cands []model.CandidateWithScore) (leads.SaveResult, error)
	UpdateStatus(ctx context.Context, id string, status model.LeadStatus) error
	List(ctx context.Context, f leads.LeadFilter) ([]model.LeadRecord, error)
}

// Campaigns creates outreach campaigns.
type Campaigns interface {
	CreateCampaign(ctx context.Context, name string, cands []model.CandidateWithScore) (campaign.Result, error)
}

// AutoPilot runs unattended pipelines.
type AutoPilot interface {
	RunAutoPilot(ctx context.Context, req autopilot.Request) (model.AutoPilotRun, error)
}

// RunReader reads recorded auto-pilot runs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*model.AutoPilotRun, error)
	ListRuns(ctx context.Context, limit int) ([]model.AutoPilotRun, error)
}

// Stats reads funnel aggregates.
type Stats interface {
	GetStats(ctx context.Context) (model.LeadStats, error)
	GetRecentLeads(ctx context.Context, limit int) ([]model.LeadRecordSummary, error)
}

// Deps are the services behind the API.
type Deps struct {
	Search    Searcher
	Enrich    Enricher
	Leads     LeadService
	Campaigns Campaigns
	AutoPilot AutoPilot
	Runs      RunReader
	Stats     Stats
}

// Server serves the /api/v1 routes.
type Server struct {
	deps      Deps
	cfg       config.ServerConfig
	autopilot config.AutoPilotConfig
	now       func() time.Time
}

// NewServer creates a Server.
func NewServer(deps Deps, cfg config.ServerConfig, ap config.AutoPilotConfig) *Server {
	return &Server{deps: deps, cfg: cfg, autopilot: ap, now: time.Now}
}

// Handler builds the router. /health is public; everything under /api/v1
// requires a bearer token.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(bearerAuth(s.cfg.APITokens))

		r.Post("/search", s.handleSearch)

		r.Post("/enrich", s.handleEnrichBatch)
		r.Get("/enrich/{place_id}", s.handleEnrichOne)

		r.Get("/leads", s.handleListLeads)
		r.Post("/leads/bulk", s.handleSaveLeads)
		r.Get("/leads/recent", s.handleRecentLeads)
		r.Get("/leads/export", s.handleExportLeads)
		r.Patch("/leads/{id}/status", s.handleUpdateStatus)

		r.Post("/campaigns", s.handleCreateCampaign)

		r.Post("/autopilot", s.handleAutoPilot)
		r.Get("/autopilot/runs", s.handleListRuns)
		r.Get("/autopilot/runs/{id}", s.handleGetRun)

		r.Get("/stats", s.handleStats)
	})

	return r
}
