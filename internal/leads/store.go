// Package leads converts candidates into durable lead records and persists
// them idempotently by business identity.
package leads

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
)

// ErrNotFound is returned when a lead or run does not exist.
var ErrNotFound = eris.New("leads: not found")

// ErrInvalidStatus is returned for an unknown lead status.
var ErrInvalidStatus = eris.New("leads: invalid status")

// LeadFilter narrows ListLeads. Zero values match everything.
type LeadFilter struct {
	IDs    []string
	Status model.LeadStatus
	Sector string
	City   string
	Limit  int
	Offset int
}

// Dimension is a grouping for lead breakdowns.
type Dimension string

const (
	DimensionIndustry Dimension = "industry"
	DimensionCity     Dimension = "city"
)

// Store is the CRM-side lead repository.
type Store interface {
	// InsertLeads inserts leads whose identity key is not yet stored, in one
	// transaction, and returns how many were created. Nothing is written on
	// error.
	InsertLeads(ctx context.Context, leads []model.LeadRecord) (int, error)
	// ListLeads returns leads ordered by created_at descending.
	ListLeads(ctx context.Context, f LeadFilter) ([]model.LeadRecord, error)
	UpdateLeadStatus(ctx context.Context, id string, status model.LeadStatus) error
	CountLeadsByStatus(ctx context.Context) (map[model.LeadStatus]int, error)
	// LeadBreakdown groups lead counts by industry or city.
	LeadBreakdown(ctx context.Context, dim Dimension) (map[string]model.Breakdown, error)

	// RecordDiscoveries adds candidates to the found ledger, keyed by place
	// id, and returns how many were new.
	RecordDiscoveries(ctx context.Context, sector, city string, cands []model.Candidate) (int, error)
	CountDiscoveries(ctx context.Context) (int, error)

	RecordAssignments(ctx context.Context, assignments []model.CampaignAssignment) (int, error)
	CountAssignments(ctx context.Context) (int, error)

	SaveRun(ctx context.Context, run model.AutoPilotRun) error
	GetRun(ctx context.Context, id string) (*model.AutoPilotRun, error)
	ListRuns(ctx context.Context, limit int) ([]model.AutoPilotRun, error)

	Migrate(ctx context.Context) error
	Close() error
}
