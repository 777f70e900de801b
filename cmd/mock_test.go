package main

import (
	"context"
	"fmt"

	"github.com/sells-group/leadgen/internal/campaign"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
)

type fakeSearcher struct {
	cands []model.Candidate
	err   error
}

func (f *fakeSearcher) SearchWithin(context.Context, string, string, float64) ([]model.Candidate, error) {
	return f.cands, f.err
}

// fakeEnricher scores candidates from a fixed table; ids missing from it
// fail.
type fakeEnricher struct {
	scores map[string]float64
	got    []string
	err    error
}

func (f *fakeEnricher) EnrichBatch(_ context.Context, cands []model.Candidate, _ map[string]model.EnrichmentResult, opts enrich.BatchOptions) (enrich.BatchResult, error) {
	var res enrich.BatchResult
	for i, c := range cands {
		f.got = append(f.got, c.PlaceID)
		res.Attempted++
		score, ok := f.scores[c.PlaceID]
		if !ok {
			res.Failed++
			res.Outcomes = append(res.Outcomes, model.EnrichmentOutcome{PlaceID: c.PlaceID, Status: model.EnrichmentFailed, Error: "enrichment: 500"})
		} else {
			res.Enriched++
			res.Outcomes = append(res.Outcomes, model.EnrichmentOutcome{
				PlaceID: c.PlaceID,
				Status:  model.EnrichmentEnriched,
				Result:  &model.EnrichmentResult{PlaceID: c.PlaceID, Score: score, Grade: model.GradeB},
			})
		}
		if opts.OnProgress != nil {
			opts.OnProgress(enrich.Progress{Processed: i + 1, Total: len(cands), Percent: float64(i+1) * 100 / float64(len(cands))})
		}
	}
	return res, f.err
}

type fakeSaver struct {
	got []model.CandidateWithScore
	err error
}

func (f *fakeSaver) SaveToCRM(_ context.Context, cands []model.CandidateWithScore) (leads.SaveResult, error) {
	f.got = cands
	if f.err != nil {
		return leads.SaveResult{}, f.err
	}
	return leads.SaveResult{Created: len(cands)}, nil
}

type fakeCampaigner struct {
	enabled bool
	name    string
	got     []model.CandidateWithScore
}

func (f *fakeCampaigner) Enabled() bool { return f.enabled }

func (f *fakeCampaigner) CreateCampaign(_ context.Context, name string, cands []model.CandidateWithScore) (campaign.Result, error) {
	f.name, f.got = name, cands
	return campaign.Result{CampaignID: "c-1", Assigned: len(cands)}, nil
}

// pagedLister serves n generated leads in pages.
type pagedLister struct {
	n       int
	err     error
	offsets []int
}

func (p *pagedLister) List(_ context.Context, f leads.LeadFilter) ([]model.LeadRecord, error) {
	p.offsets = append(p.offsets, f.Offset)
	if p.err != nil {
		return nil, p.err
	}
	var out []model.LeadRecord
	for i := f.Offset; i < p.n && len(out) < f.Limit; i++ {
		out = append(out, model.LeadRecord{ID: fmt.Sprintf("l%d", i)})
	}
	return out, nil
}

func huntCandidates(n int) []model.Candidate {
	out := make([]model.Candidate, n)
	for i := range out {
		out[i] = model.Candidate{
			PlaceID: fmt.Sprintf("p%d", i+1),
			Name:    fmt.Sprintf("Pizzeria %d", i+1),
			Email:   fmt.Sprintf("info%d@example.it", i+1),
		}
	}
	return out
}
