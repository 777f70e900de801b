package leads

import (
	"strings"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/scoring"
)

// DefaultScore is the score given to leads saved without enrichment.
const DefaultScore = 50

const industryFallback = "general"

// ToLeadRecord maps a candidate onto a lead record. ID and CreatedAt are
// left for the caller to stamp.
func ToLeadRecord(c model.CandidateWithScore, defaultScore float64) model.LeadRecord {
	score, ok := c.Score()
	if !ok {
		score = defaultScore
	}
	score = scoring.Clamp(score)

	grade := scoring.GradeFor(score)
	if c.Enrichment != nil && c.Enrichment.Grade.Valid() {
		grade = c.Enrichment.Grade
	}

	return model.LeadRecord{
		IdentityKey: CandidateKey(c.Candidate),
		Company:     strings.TrimSpace(c.Name),
		Industry:    industryFor(c),
		Size:        model.SizeMicro,
		Location:    LocationFromAddress(c.Address),
		Address:     strings.TrimSpace(c.Address),
		Phone:       c.Phone,
		Email:       c.ContactEmail(),
		Website:     c.Website,
		Need:        ClassifyNeed(c.Candidate),
		Score:       score,
		Grade:       grade,
		Rating:      c.Rating,
		ReviewCount: c.ReviewCount,
		PlaceID:     c.PlaceID,
		Source:      sourceFor(c.Candidate),
		Sector:      strings.TrimSpace(c.Sector),
		City:        strings.TrimSpace(c.City),
		Status:      model.LeadStatusNew,
	}
}

// LocationFromAddress returns the last comma-delimited address segment.
func LocationFromAddress(address string) string {
	parts := strings.Split(address, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(parts[i]); seg != "" {
			return seg
		}
	}
	return ""
}

// ClassifyNeed guesses the service a business most likely lacks.
func ClassifyNeed(c model.Candidate) model.Need {
	switch {
	case strings.TrimSpace(c.Website) == "":
		return model.NeedWebPresence
	case c.Rating < 3.5:
		return model.NeedReputation
	case c.ReviewCount < 20:
		return model.NeedVisibility
	default:
		return model.NeedLeadGeneration
	}
}

func industryFor(c model.CandidateWithScore) string {
	if s := strings.TrimSpace(c.Sector); s != "" {
		return s
	}
	if p := strings.TrimSpace(c.PrimaryCategory); p != "" {
		return p
	}
	return industryFallback
}

func sourceFor(c model.Candidate) string {
	if c.Source != "" {
		return c.Source
	}
	return model.SourceGooglePlaces
}
