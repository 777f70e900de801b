package autopilot

import (
	"context"
	"fmt"
	"sync"

	"github.com/sells-group/leadgen/internal/campaign"
	"github.com/sells-group/leadgen/internal/enrich"
	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/scoring"
)

type fakeSearcher struct {
	cands []model.Candidate
	err   error
	calls int
	// entered is closed on the first call; block, when set, is then waited
	// on before returning.
	entered chan struct{}
	block   chan struct{}
	once    sync.Once
}

func (f *fakeSearcher) SearchWithin(ctx context.Context, _, _ string, _ float64) ([]model.Candidate, error) {
	f.calls++
	if f.entered != nil {
		f.once.Do(func() { close(f.entered) })
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.cands, f.err
}

// fakeEnricher scores each candidate from a table. Place ids missing from
// scores fail.
type fakeEnricher struct {
	scores map[string]float64
	emails map[string]string
	err    error
	got    []model.Candidate
}

func (f *fakeEnricher) EnrichBatch(_ context.Context, cands []model.Candidate, _ map[string]model.EnrichmentResult, _ enrich.BatchOptions) (enrich.BatchResult, error) {
	f.got = cands
	var res enrich.BatchResult
	for _, c := range cands {
		res.Attempted++
		score, ok := f.scores[c.PlaceID]
		if !ok {
			res.Failed++
			res.Outcomes = append(res.Outcomes, model.EnrichmentOutcome{
				PlaceID: c.PlaceID,
				Status:  model.EnrichmentFailed,
				Error:   "enrichment: unexpected status 500",
			})
			continue
		}
		res.Enriched++
		r := model.EnrichmentResult{
			PlaceID: c.PlaceID,
			Score:   score,
			Grade:   scoring.GradeFor(score),
			Email:   f.emails[c.PlaceID],
		}
		res.Outcomes = append(res.Outcomes, model.EnrichmentOutcome{
			PlaceID: c.PlaceID,
			Status:  model.EnrichmentEnriched,
			Result:  &r,
		})
	}
	return res, f.err
}

type fakeSaver struct {
	got   []model.CandidateWithScore
	res   *leads.SaveResult
	err   error
	calls int
}

func (f *fakeSaver) SaveToCRM(_ context.Context, cands []model.CandidateWithScore) (leads.SaveResult, error) {
	f.calls++
	f.got = cands
	if f.err != nil {
		return leads.SaveResult{}, f.err
	}
	if f.res != nil {
		return *f.res, nil
	}
	return leads.SaveResult{Created: len(cands)}, nil
}

type fakeRunStore struct {
	mu          sync.Mutex
	runs        []model.AutoPilotRun
	discoveries int
	discErr     error
	saveErr     error
}

func (f *fakeRunStore) RecordDiscoveries(_ context.Context, _, _ string, cands []model.Candidate) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.discErr != nil {
		return 0, f.discErr
	}
	f.discoveries += len(cands)
	return len(cands), nil
}

func (f *fakeRunStore) SaveRun(_ context.Context, run model.AutoPilotRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakeRunStore) last() model.AutoPilotRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[len(f.runs)-1]
}

type fakeCampaigner struct {
	enabled bool
	name    string
	got     []model.CandidateWithScore
	err     error
}

func (f *fakeCampaigner) Enabled() bool { return f.enabled }

func (f *fakeCampaigner) CreateCampaign(_ context.Context, name string, cands []model.CandidateWithScore) (campaign.Result, error) {
	f.name = name
	f.got = cands
	res := campaign.Result{CampaignID: "camp-1", Assigned: len(cands)}
	if f.err != nil {
		res.Assigned = 1
	}
	return res, f.err
}

func candidates(n int) []model.Candidate {
	out := make([]model.Candidate, n)
	for i := range out {
		out[i] = model.Candidate{
			PlaceID:     fmt.Sprintf("p%d", i+1),
			Name:        fmt.Sprintf("Bar %d", i+1),
			Address:     fmt.Sprintf("Via Toledo %d, 80134 Napoli NA, Italia", i+1),
			Rating:      4.2,
			ReviewCount: 30,
			Source:      model.SourceGooglePlaces,
		}
	}
	return out
}
