// Package store implements leads.Store on Postgres and SQLite.
package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// leadColumns is the column order shared by inserts and selects.
var leadColumns = []string{
	"id", "identity_key", "company", "industry", "size", "location", "address",
	"phone", "email", "website", "need", "score", "grade", "rating",
	"review_count", "place_id", "source", "sector", "city", "status", "created_at",
}

var discoveryColumns = []string{
	"place_id", "name", "address", "rating", "review_count", "sector", "city", "found_at",
}

var assignmentColumns = []string{
	"campaign_id", "campaign_name", "identity_key", "place_id", "name", "email", "assigned_at",
}

func leadRow(l model.LeadRecord) []any {
	return []any{
		l.ID, l.IdentityKey, l.Company, l.Industry, string(l.Size), l.Location, l.Address,
		l.Phone, l.Email, l.Website, string(l.Need), l.Score, string(l.Grade), l.Rating,
		l.ReviewCount, l.PlaceID, l.Source, l.Sector, l.City, string(l.Status), l.CreatedAt,
	}
}

func discoveryRow(sector, city string, c model.Candidate, now time.Time) []any {
	return []any{c.PlaceID, c.Name, c.Address, c.Rating, c.ReviewCount, sector, city, now}
}

func assignmentRow(a model.CampaignAssignment) []any {
	return []any{a.CampaignID, a.CampaignName, a.IdentityKey, a.PlaceID, a.Name, a.Email, a.AssignedAt}
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (model.LeadRecord, error) {
	var (
		l                         model.LeadRecord
		size, need, grade, status string
	)
	err := row.Scan(
		&l.ID, &l.IdentityKey, &l.Company, &l.Industry, &size, &l.Location, &l.Address,
		&l.Phone, &l.Email, &l.Website, &need, &l.Score, &grade, &l.Rating,
		&l.ReviewCount, &l.PlaceID, &l.Source, &l.Sector, &l.City, &status, &l.CreatedAt,
	)
	if err != nil {
		return model.LeadRecord{}, err
	}
	l.Size = model.SizeBucket(size)
	l.Need = model.Need(need)
	l.Grade = model.Grade(grade)
	l.Status = model.LeadStatus(status)
	return l, nil
}

// breakdownExpr returns the SQL expression a lead breakdown groups on. City
// falls back to the location parsed from the address.
func breakdownExpr(dim leads.Dimension) (string, error) {
	switch dim {
	case leads.DimensionIndustry:
		return "industry", nil
	case leads.DimensionCity:
		return "COALESCE(NULLIF(city, ''), location)", nil
	default:
		return "", eris.Errorf("store: unknown breakdown dimension %q", dim)
	}
}

func listLimit(n int) int {
	switch {
	case n <= 0:
		return defaultListLimit
	case n > maxListLimit:
		return maxListLimit
	default:
		return n
	}
}

func encodeRun(run model.AutoPilotRun) ([]byte, error) {
	if run.HighValueLeads == nil {
		run.HighValueLeads = []model.HighValueLead{}
	}
	data, err := json.Marshal(run)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal run")
	}
	return data, nil
}

func decodeRun(data []byte) (*model.AutoPilotRun, error) {
	var run model.AutoPilotRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal run")
	}
	if run.HighValueLeads == nil {
		run.HighValueLeads = []model.HighValueLead{}
	}
	return &run, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(leads.ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
