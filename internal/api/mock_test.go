package api

import (
	"context"

	"github.com/sells-group/leadgen/internal/autopilot"
	"github.com/sells-group/leadgen/internal/campaign"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
)

type fakeSearch struct {
	cands  []model.Candidate
	err    error
	sector string
	city   string
	radius float64
}

func (f *fakeSearch) SearchWithin(_ context.Context, sector, city string, radiusKm float64) ([]model.Candidate, error) {
	f.sector, f.city, f.radius = sector, city, radiusKm
	return f.cands, f.err
}

type fakeEnrich struct {
	one      model.EnrichmentResult
	oneErr   error
	batch    enrich.BatchResult
	batchErr error
	opts     enrich.BatchOptions
	current  map[string]model.EnrichmentResult
	gotIDs   []string
}

func (f *fakeEnrich) Enrich(_ context.Context, c model.Candidate) (model.EnrichmentResult, error) {
	f.gotIDs = append(f.gotIDs, c.PlaceID)
	return f.one, f.oneErr
}

func (f *fakeEnrich) EnrichBatch(_ context.Context, cands []model.Candidate, current map[string]model.EnrichmentResult, opts enrich.BatchOptions) (enrich.BatchResult, error) {
	for _, c := range cands {
		f.gotIDs = append(f.gotIDs, c.PlaceID)
	}
	f.opts = opts
	f.current = current
	return f.batch, f.batchErr
}

type fakeLeads struct {
	saveRes   leads.SaveResult
	saveErr   error
	saved     []model.CandidateWithScore
	statusErr error
	statusID  string
	status    model.LeadStatus
	records   []model.LeadRecord
	listErr   error
	filters   []leads.LeadFilter
}

func (f *fakeLeads) SaveToCRM(_ context.Context, cands []model.CandidateWithScore) (leads.SaveResult, error) {
	f.saved = cands
	return f.saveRes, f.saveErr
}

func (f *fakeLeads) UpdateStatus(_ context.Context, id string, status model.LeadStatus) error {
	f.statusID, f.status = id, status
	return f.statusErr
}

// List pages through records the way the store does.
func (f *fakeLeads) List(_ context.Context, filter leads.LeadFilter) ([]model.LeadRecord, error) {
	f.filters = append(f.filters, filter)
	if f.listErr != nil {
		return nil, f.listErr
	}
	if filter.Offset >= len(f.records) {
		return nil, nil
	}
	end := len(f.records)
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return f.records[filter.Offset:end], nil
}

type fakeCampaigns struct {
	res  campaign.Result
	err  error
	name string
	got  []model.CandidateWithScore
}

func (f *fakeCampaigns) CreateCampaign(_ context.Context, name string, cands []model.CandidateWithScore) (campaign.Result, error) {
	f.name, f.got = name, cands
	return f.res, f.err
}

type fakeAutoPilot struct {
	run model.AutoPilotRun
	err error
	req autopilot.Request
}

func (f *fakeAutoPilot) RunAutoPilot(_ context.Context, req autopilot.Request) (model.AutoPilotRun, error) {
	f.req = req
	return f.run, f.err
}

type fakeRuns struct {
	runs  map[string]model.AutoPilotRun
	list  []model.AutoPilotRun
	err   error
	limit int
}

func (f *fakeRuns) GetRun(_ context.Context, id string) (*model.AutoPilotRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	run, ok := f.runs[id]
	if !ok {
		return nil, leads.ErrNotFound
	}
	return &run, nil
}

func (f *fakeRuns) ListRuns(_ context.Context, limit int) ([]model.AutoPilotRun, error) {
	f.limit = limit
	return f.list, f.err
}

type fakeStats struct {
	stats  model.LeadStats
	recent []model.LeadRecordSummary
	err    error
	limit  int
}

func (f *fakeStats) GetStats(context.Context) (model.LeadStats, error) {
	return f.stats, f.err
}

func (f *fakeStats) GetRecentLeads(_ context.Context, limit int) ([]model.LeadRecordSummary, error) {
	f.limit = limit
	return f.recent, f.err
}
