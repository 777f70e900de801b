package model

import "time"

// Outcome is the terminal result of an auto-pilot run.
type Outcome string

const (
	OutcomeNoCandidates  Outcome = "no_candidates"
	OutcomeNoneQualified Outcome = "none_qualified"
	OutcomeCompleted     Outcome = "completed"
	OutcomeFailed        Outcome = "failed"
)

// HighValueLead summarizes a qualified lead in an auto-pilot result.
type HighValueLead struct {
	PlaceID string  `json:"place_id"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Grade   Grade   `json:"grade"`
	Email   string  `json:"email,omitempty"`
}

// AutoPilotRun is the record of one unattended pipeline run. It is written
// once on completion.
type AutoPilotRun struct {
	ID              string          `json:"run_id"`
	Sector          string          `json:"sector"`
	City            string          `json:"city"`
	MinScore        float64         `json:"min_score"`
	MaxLeads        int             `json:"max_leads"`
	RadiusKm        float64         `json:"radius_km"`
	Outcome         Outcome         `json:"outcome"`
	LeadsFound      int             `json:"leads_found"`
	LeadsEnriched   int             `json:"leads_enriched"`
	LeadsFailed     int             `json:"leads_failed"`
	LeadsSaved      int             `json:"leads_saved"`
	LeadsSkipped    int             `json:"leads_skipped"`
	LeadsCampaigned int             `json:"leads_campaigned"`
	HighValueLeads  []HighValueLead `json:"high_value_leads"`
	CampaignID      string          `json:"campaign_id,omitempty"`
	EstimatedCost   float64         `json:"estimated_cost"`
	Error           string          `json:"error,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     time.Time       `json:"completed_at"`
}
