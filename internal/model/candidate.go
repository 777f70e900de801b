package model

import "time"

// SourceGooglePlaces tags candidates fetched from the Places Text Search API.
const SourceGooglePlaces = "google_places"

// Candidate is a business returned by the places directory. Candidates are
// never mutated after the search returns them; per-session annotations
// (selection, enrichment, saved) live alongside them, keyed by PlaceID.
type Candidate struct {
	PlaceID         string   `json:"place_id"`
	Name            string   `json:"name"`
	Address         string   `json:"address"`
	Phone           string   `json:"phone,omitempty"`
	Website         string   `json:"website,omitempty"`
	Email           string   `json:"email,omitempty"`
	Rating          float64  `json:"rating"`
	ReviewCount     int      `json:"review_count"`
	Types           []string `json:"types,omitempty"`
	PrimaryCategory string   `json:"primary_category,omitempty"`
	Source          string   `json:"source"`
}

// Grade is a letter grade derived from a 0-100 score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// Valid reports whether g is one of the known letter grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeA, GradeB, GradeC, GradeD, GradeF:
		return true
	}
	return false
}

// EnrichmentResult is the current enrichment of one candidate. A candidate
// has at most one; re-enrichment replaces it.
type EnrichmentResult struct {
	PlaceID        string             `json:"place_id"`
	Score          float64            `json:"score"`
	Grade          Grade              `json:"grade"`
	Breakdown      map[string]float64 `json:"breakdown"`
	Recommendation string             `json:"recommendation"`
	Email          string             `json:"email,omitempty"`
	EnrichedAt     time.Time          `json:"enriched_at"`
}

// EnrichmentStatus is the outcome of one enrichment attempt.
type EnrichmentStatus string

const (
	EnrichmentEnriched EnrichmentStatus = "enriched"
	EnrichmentFailed   EnrichmentStatus = "failed"
	EnrichmentSkipped  EnrichmentStatus = "skipped"
)

// EnrichmentOutcome records what happened to a single candidate in a batch.
// A candidate with no outcome has not been enriched yet; a failed outcome is
// a distinct state.
type EnrichmentOutcome struct {
	PlaceID string            `json:"place_id"`
	Status  EnrichmentStatus  `json:"status"`
	Result  *EnrichmentResult `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// CandidateWithScore is the input to persistence and campaigns.
type CandidateWithScore struct {
	Candidate
	Enrichment *EnrichmentResult `json:"enrichment,omitempty"`
	Sector     string            `json:"sector,omitempty"`
	City       string            `json:"city,omitempty"`
}

// Score returns the enrichment score and whether one is present.
func (c CandidateWithScore) Score() (float64, bool) {
	if c.Enrichment == nil {
		return 0, false
	}
	return c.Enrichment.Score, true
}

// ContactEmail prefers the email found during enrichment.
func (c CandidateWithScore) ContactEmail() string {
	if c.Enrichment != nil && c.Enrichment.Email != "" {
		return c.Enrichment.Email
	}
	return c.Email
}
