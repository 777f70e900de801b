// Package monitoring watches auto-pilot run health and alerts through a
// webhook when thresholds are breached.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
)

// maxRuns bounds how many recent runs one snapshot reads.
const maxRuns = 1000

// MetricsSnapshot holds a point-in-time view of auto-pilot health.
type MetricsSnapshot struct {
	// Run metrics (within lookback window).
	RunsTotal         int     `json:"runs_total"`
	RunsCompleted     int     `json:"runs_completed"`
	RunsNoneQualified int     `json:"runs_none_qualified"`
	RunsNoCandidates  int     `json:"runs_no_candidates"`
	RunsFailed        int     `json:"runs_failed"`
	RunFailRate       float64 `json:"run_fail_rate"`
	CostUSD           float64 `json:"cost_usd"`

	// Enrichment metrics across those runs.
	LeadsEnriched  int     `json:"leads_enriched"`
	LeadsFailed    int     `json:"leads_failed"`
	EnrichFailRate float64 `json:"enrich_fail_rate"`
	LeadsSaved     int     `json:"leads_saved"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister lists recorded auto-pilot runs, most recent first.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]model.AutoPilotRun, error)
}

// Collector gathers metrics from the run history.
type Collector struct {
	runs RunLister
	now  func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, now: time.Now}
}

// Collect gathers a snapshot over runs started within the lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.runs.ListRuns(ctx, maxRuns)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.RunsTotal++
		switch r.Outcome {
		case model.OutcomeCompleted:
			snap.RunsCompleted++
		case model.OutcomeNoneQualified:
			snap.RunsNoneQualified++
		case model.OutcomeNoCandidates:
			snap.RunsNoCandidates++
		case model.OutcomeFailed:
			snap.RunsFailed++
		}
		snap.CostUSD += r.EstimatedCost
		snap.LeadsEnriched += r.LeadsEnriched
		snap.LeadsFailed += r.LeadsFailed
		snap.LeadsSaved += r.LeadsSaved
	}

	if snap.RunsTotal > 0 {
		snap.RunFailRate = float64(snap.RunsFailed) / float64(snap.RunsTotal)
	}
	if attempted := snap.LeadsEnriched + snap.LeadsFailed; attempted > 0 {
		snap.EnrichFailRate = float64(snap.LeadsFailed) / float64(attempted)
	}

	return snap, nil
}
