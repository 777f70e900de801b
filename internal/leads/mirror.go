package leads

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/salesforce"
)

const leadSource = "Google Places"

// mirrorPageSize bounds how many created leads one ListLeads call reads back.
const mirrorPageSize = 500

// mirror pushes the leads created by the last insert to Salesforce. Rows
// that already existed keep their original id, so the freshly stamped ids
// select exactly the new rows. Failures are logged only.
func (s *Service) mirror(ctx context.Context, records []model.LeadRecord) {
	log := zap.L().With(zap.String("stage", "mirror"))

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	created := make([]model.LeadRecord, 0, len(ids))
	for start := 0; start < len(ids); start += mirrorPageSize {
		end := min(start+mirrorPageSize, len(ids))
		page, err := s.store.ListLeads(ctx, LeadFilter{IDs: ids[start:end], Limit: end - start})
		if err != nil {
			log.Warn("salesforce mirror: list created leads", zap.Int("offset", start), zap.Error(err))
			return
		}
		created = append(created, page...)
	}

	sfLeads := make([]salesforce.Lead, len(created))
	for i, r := range created {
		sfLeads[i] = toSalesforceLead(r)
	}

	results, err := salesforce.CreateLeads(ctx, s.sf, sfLeads)
	if err != nil {
		log.Warn("salesforce mirror failed", zap.Int("sent", len(results)), zap.Error(err))
		return
	}

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
			log.Warn("salesforce lead rejected", zap.Strings("errors", r.Errors))
		}
	}
	log.Info("salesforce mirror complete",
		zap.Int("mirrored", len(results)-failed),
		zap.Int("failed", failed),
	)
}

func (s *Service) mirrorStatus(ctx context.Context, id string, status model.LeadStatus) {
	log := zap.L().With(zap.String("stage", "mirror"), zap.String("lead_id", id))

	recs, err := s.store.ListLeads(ctx, LeadFilter{IDs: []string{id}, Limit: 1})
	if err != nil || len(recs) == 0 {
		log.Warn("salesforce mirror: lead lookup failed", zap.Error(err))
		return
	}

	lead, err := salesforce.FindLeadByExternalID(ctx, s.sf, recs[0].IdentityKey)
	if err != nil {
		log.Warn("salesforce mirror: find lead", zap.Error(err))
		return
	}
	if lead == nil {
		log.Debug("salesforce mirror: lead not mirrored")
		return
	}

	if err := salesforce.UpdateLeadStatus(ctx, s.sf, lead.ID, salesforceStatus(status)); err != nil {
		log.Warn("salesforce mirror: update status", zap.Error(err))
	}
}

func toSalesforceLead(r model.LeadRecord) salesforce.Lead {
	return salesforce.Lead{
		Company:    r.Company,
		LastName:   r.Company,
		Email:      r.Email,
		Phone:      r.Phone,
		Website:    r.Website,
		Street:     r.Address,
		City:       r.City,
		Industry:   r.Industry,
		LeadSource: leadSource,
		Status:     salesforceStatus(r.Status),
		Rating:     salesforceRating(r.Grade),
		ExternalID: r.IdentityKey,
		Score:      r.Score,
	}
}

func salesforceStatus(s model.LeadStatus) string {
	switch s {
	case model.LeadStatusContacted:
		return salesforce.LeadStatusWorking
	case model.LeadStatusConverted:
		return salesforce.LeadStatusConverted
	case model.LeadStatusRejected:
		return salesforce.LeadStatusRejected
	default:
		return salesforce.LeadStatusOpen
	}
}

func salesforceRating(g model.Grade) string {
	switch g {
	case model.GradeA:
		return "Hot"
	case model.GradeB, model.GradeC:
		return "Warm"
	default:
		return "Cold"
	}
}
