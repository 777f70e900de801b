package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/autopilot"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/export"
	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/internal/search"
	"github.com/sells-group/leadgen/pkg/enrichment"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
	exportPageSize   = 500
)

type searchRequest struct {
	Query     string  `json:"query"`
	City      string  `json:"city"`
	MinRating float64 `json:"min_rating"`
	RadiusKm  float64 `json:"radius_km"`
}

type searchResponse struct {
	Results []model.Candidate `json:"results"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	if req.MinRating < 0 || req.MinRating > 5 {
		writeError(w, http.StatusBadRequest, "min_rating must be between 0 and 5")
		return
	}
	if req.RadiusKm < 0 {
		writeError(w, http.StatusBadRequest, "radius_km must be >= 0")
		return
	}

	cands, err := s.deps.Search.SearchWithin(r.Context(), req.Query, req.City, req.RadiusKm)
	if err != nil {
		if errors.Is(err, search.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		failWith(w, r, http.StatusBadGateway, err)
		return
	}
	if req.MinRating > 0 {
		cands = search.FilterByRating(cands, req.MinRating)
	}
	if cands == nil {
		cands = []model.Candidate{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: cands})
}

type enrichRequest struct {
	Candidates []model.Candidate                 `json:"candidates"`
	Current    map[string]model.EnrichmentResult `json:"current,omitempty"`
	Force      bool                              `json:"force"`
}

func (s *Server) handleEnrichBatch(w http.ResponseWriter, r *http.Request) {
	var req enrichRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Candidates) == 0 {
		writeError(w, http.StatusBadRequest, "candidates is required")
		return
	}
	for _, c := range req.Candidates {
		if strings.TrimSpace(c.PlaceID) == "" {
			writeError(w, http.StatusBadRequest, "every candidate needs a place_id")
			return
		}
	}

	res, err := s.deps.Enrich.EnrichBatch(r.Context(), req.Candidates, req.Current, enrich.BatchOptions{Force: req.Force})
	if err != nil {
		// Cancelled mid-batch: the outcomes so far are still returned.
		zap.L().Warn("enrich batch interrupted",
			zap.String("stage", "api"),
			zap.Int("attempted", res.Attempted),
			zap.Error(err),
		)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEnrichOne(w http.ResponseWriter, r *http.Request) {
	placeID := strings.TrimSpace(chi.URLParam(r, "place_id"))
	if placeID == "" {
		writeError(w, http.StatusBadRequest, "place_id is required")
		return
	}

	res, err := s.deps.Enrich.Enrich(r.Context(), model.Candidate{PlaceID: placeID})
	if err != nil {
		switch {
		case errors.Is(err, enrichment.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, resilience.ErrCircuitOpen):
			failWith(w, r, http.StatusServiceUnavailable, err)
		case errors.Is(err, enrich.ErrNoScore):
			writeError(w, http.StatusBadGateway, "enrichment provider returned no score for "+placeID)
		default:
			failWith(w, r, http.StatusBadGateway, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type saveLeadsRequest struct {
	Leads []model.CandidateWithScore `json:"leads"`
}

func (s *Server) handleSaveLeads(w http.ResponseWriter, r *http.Request) {
	var req saveLeadsRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Leads) == 0 {
		writeError(w, http.StatusBadRequest, "leads is required")
		return
	}

	res, err := s.deps.Leads.SaveToCRM(r.Context(), req.Leads)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type statusRequest struct {
	Status model.LeadStatus `json:"status"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	if err := s.deps.Leads.UpdateStatus(r.Context(), chi.URLParam(r, "id"), req.Status); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// leadFilter reads status, sector, city, limit and offset query params.
func leadFilter(r *http.Request) (leads.LeadFilter, error) {
	q := r.URL.Query()
	f := leads.LeadFilter{
		Status: model.LeadStatus(q.Get("status")),
		Sector: q.Get("sector"),
		City:   q.Get("city"),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, errors.New("invalid status filter")
	}
	var err error
	if f.Limit, err = intParam(r, "limit", 0); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(r, "offset", 0); err != nil {
		return f, err
	}
	return f, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) handleListLeads(w http.ResponseWriter, r *http.Request) {
	f, err := leadFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.deps.Leads.List(r.Context(), f)
	if err != nil {
		fail(w, r, err)
		return
	}
	if out == nil {
		out = []model.LeadRecord{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRecentLeads(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.deps.Stats.GetRecentLeads(r.Context(), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleExportLeads(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := leadFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var all []model.LeadRecord
	f.Limit = exportPageSize
	for {
		page, err := s.deps.Leads.List(r.Context(), f)
		if err != nil {
			fail(w, r, err)
			return
		}
		all = append(all, page...)
		if len(page) < exportPageSize {
			break
		}
		f.Offset += len(page)
	}

	// Rendered to a buffer so a failure can still produce a JSON error.
	var buf bytes.Buffer
	if err := export.Write(&buf, format, all); err != nil {
		fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename(s.now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type campaignRequest struct {
	Name  string                     `json:"name"`
	Leads []model.CandidateWithScore `json:"leads"`
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req campaignRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Leads) == 0 {
		writeError(w, http.StatusBadRequest, "leads is required")
		return
	}

	res, err := s.deps.Campaigns.CreateCampaign(r.Context(), req.Name, req.Leads)
	if err != nil {
		if status := statusFor(err); status < http.StatusInternalServerError || status == http.StatusServiceUnavailable {
			writeError(w, status, err.Error())
			return
		}
		failWith(w, r, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type autopilotRequest struct {
	Sector       string   `json:"sector"`
	City         string   `json:"city"`
	MinScore     *float64 `json:"min_score"`
	MaxLeads     int      `json:"max_leads"`
	RadiusKm     float64  `json:"radius_km"`
	Campaign     bool     `json:"campaign"`
	CampaignName string   `json:"campaign_name"`
}

// handleAutoPilot answers 200 for completed, none_qualified and
// no_candidates runs, 409 while the same sector and city is running and 502
// with the run body when the run failed.
func (s *Server) handleAutoPilot(w http.ResponseWriter, r *http.Request) {
	var body autopilotRequest
	if !decode(w, r, &body) {
		return
	}

	req := autopilot.Request{
		Sector:       body.Sector,
		City:         body.City,
		MinScore:     s.autopilot.DefaultMinScore,
		MaxLeads:     body.MaxLeads,
		RadiusKm:     body.RadiusKm,
		Campaign:     body.Campaign,
		CampaignName: body.CampaignName,
	}
	if body.MinScore != nil {
		req.MinScore = *body.MinScore
	}

	run, err := s.deps.AutoPilot.RunAutoPilot(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, run)
	case errors.Is(err, autopilot.ErrInvalidRequest), errors.Is(err, autopilot.ErrRunInFlight):
		writeError(w, statusFor(err), err.Error())
	case run.Outcome == model.OutcomeFailed:
		zap.L().Warn("autopilot run failed",
			zap.String("stage", "api"),
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, run)
	default:
		fail(w, r, err)
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultRunsLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit == 0 {
		limit = defaultRunsLimit
	}
	if limit > maxRunsLimit {
		limit = maxRunsLimit
	}

	runs, err := s.deps.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.AutoPilotRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.deps.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Stats.GetStats(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
