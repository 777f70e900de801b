// Package stats derives funnel aggregates from the lead store.
package stats

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
)

const (
	// DefaultRecentLimit is used when no positive limit is requested.
	DefaultRecentLimit = 10
	// MaxRecentLimit caps recent-lead requests.
	MaxRecentLimit = 100
)

// Reader is the read side of the lead store used for aggregates.
type Reader interface {
	CountLeadsByStatus(ctx context.Context) (map[model.LeadStatus]int, error)
	LeadBreakdown(ctx context.Context, dim leads.Dimension) (map[string]model.Breakdown, error)
	CountDiscoveries(ctx context.Context) (int, error)
	CountAssignments(ctx context.Context) (int, error)
	ListLeads(ctx context.Context, f leads.LeadFilter) ([]model.LeadRecord, error)
}

// Aggregator computes LeadStats. It never writes.
type Aggregator struct {
	store Reader
}

// New creates an Aggregator over store.
func New(store Reader) *Aggregator {
	return &Aggregator{store: store}
}

// GetStats runs the count queries concurrently and assembles the stats. An
// empty store yields zero counts with empty, non-nil maps and slices.
func (a *Aggregator) GetStats(ctx context.Context) (model.LeadStats, error) {
	var (
		byStatus    map[model.LeadStatus]int
		byIndustry  map[string]model.Breakdown
		byCity      map[string]model.Breakdown
		discoveries int
		assignments int
		recent      []model.LeadRecordSummary
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.store.CountLeadsByStatus(gctx)
		if err != nil {
			return eris.Wrap(err, "stats: count by status")
		}
		byStatus = n
		return nil
	})
	g.Go(func() error {
		n, err := a.store.LeadBreakdown(gctx, leads.DimensionIndustry)
		if err != nil {
			return eris.Wrap(err, "stats: industry breakdown")
		}
		byIndustry = n
		return nil
	})
	g.Go(func() error {
		n, err := a.store.LeadBreakdown(gctx, leads.DimensionCity)
		if err != nil {
			return eris.Wrap(err, "stats: city breakdown")
		}
		byCity = n
		return nil
	})
	g.Go(func() error {
		n, err := a.store.CountDiscoveries(gctx)
		if err != nil {
			return eris.Wrap(err, "stats: count discoveries")
		}
		discoveries = n
		return nil
	})
	g.Go(func() error {
		n, err := a.store.CountAssignments(gctx)
		if err != nil {
			return eris.Wrap(err, "stats: count assignments")
		}
		assignments = n
		return nil
	})
	g.Go(func() error {
		n, err := a.GetRecentLeads(gctx, DefaultRecentLimit)
		recent = n
		return err
	})
	if err := g.Wait(); err != nil {
		return model.LeadStats{}, err
	}

	saved := 0
	for _, n := range byStatus {
		saved += n
	}
	converted := byStatus[model.LeadStatusConverted]
	rejected := byStatus[model.LeadStatusRejected]

	totalFound := discoveries
	if saved > totalFound {
		totalFound = saved
	}

	if byIndustry == nil {
		byIndustry = map[string]model.Breakdown{}
	}
	if byCity == nil {
		byCity = map[string]model.Breakdown{}
	}

	return model.LeadStats{
		TotalFound:          totalFound,
		SavedToCRM:          saved,
		EmailCampaignsSent:  assignments,
		ConvertedToCustomer: converted,
		Rejected:            rejected,
		Pending:             saved - converted - rejected,
		ConversionRate:      ConversionRate(converted, totalFound),
		ByIndustry:          byIndustry,
		ByCity:              byCity,
		RecentLeads:         recent,
	}, nil
}

// GetRecentLeads returns the newest leads first. Non-positive limits select
// DefaultRecentLimit; larger ones are capped at MaxRecentLimit.
func (a *Aggregator) GetRecentLeads(ctx context.Context, limit int) ([]model.LeadRecordSummary, error) {
	recs, err := a.store.ListLeads(ctx, leads.LeadFilter{Limit: RecentLimit(limit)})
	if err != nil {
		return nil, eris.Wrap(err, "stats: recent leads")
	}
	out := make([]model.LeadRecordSummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Summary())
	}
	return out, nil
}

// RecentLimit clamps a requested recent-lead limit.
func RecentLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	}
	return limit
}

// ConversionRate is converted/total as a percentage rounded to 2 decimals,
// or 0 when total is 0.
func ConversionRate(converted, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(converted)/float64(total)*100*100) / 100
}
