package model

import "time"

// LeadStatus tracks a persisted lead through the sales funnel.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusRejected  LeadStatus = "rejected"
)

// Valid reports whether s is a known lead status.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusConverted, LeadStatusRejected:
		return true
	}
	return false
}

// SizeBucket is an ordered company size classification.
type SizeBucket string

const (
	SizeMicro  SizeBucket = "micro"
	SizeSmall  SizeBucket = "small"
	SizeMedium SizeBucket = "medium"
	SizeLarge  SizeBucket = "large"
)

// Rank orders size buckets from micro (0) to large (3). Unknown buckets rank
// as micro.
func (s SizeBucket) Rank() int {
	switch s {
	case SizeSmall:
		return 1
	case SizeMedium:
		return 2
	case SizeLarge:
		return 3
	default:
		return 0
	}
}

// Need classifies what a prospective customer most likely lacks.
type Need string

const (
	NeedWebPresence    Need = "web_presence"
	NeedReputation     Need = "reputation"
	NeedVisibility     Need = "visibility"
	NeedLeadGeneration Need = "lead_generation"
)

// LeadRecord is a candidate persisted as a durable sales lead. IdentityKey
// is unique across the store.
type LeadRecord struct {
	ID          string     `json:"id"`
	IdentityKey string     `json:"identity_key"`
	Company     string     `json:"company"`
	Industry    string     `json:"industry"`
	Size        SizeBucket `json:"size"`
	Location    string     `json:"location"`
	Address     string     `json:"address"`
	Phone       string     `json:"phone,omitempty"`
	Email       string     `json:"email,omitempty"`
	Website     string     `json:"website,omitempty"`
	Need        Need       `json:"need"`
	Score       float64    `json:"score"`
	Grade       Grade      `json:"grade"`
	Rating      float64    `json:"rating"`
	ReviewCount int        `json:"review_count"`
	PlaceID     string     `json:"place_id"`
	Source      string     `json:"source"`
	Sector      string     `json:"sector,omitempty"`
	City        string     `json:"city,omitempty"`
	Status      LeadStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}

// LeadRecordSummary is the compact projection returned by recent-lead views.
type LeadRecordSummary struct {
	ID        string     `json:"id"`
	Company   string     `json:"company"`
	Industry  string     `json:"industry"`
	Location  string     `json:"location"`
	Score     float64    `json:"score"`
	Grade     Grade      `json:"grade"`
	Status    LeadStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Summary projects a LeadRecord onto its summary view.
func (l LeadRecord) Summary() LeadRecordSummary {
	return LeadRecordSummary{
		ID:        l.ID,
		Company:   l.Company,
		Industry:  l.Industry,
		Location:  l.Location,
		Score:     l.Score,
		Grade:     l.Grade,
		Status:    l.Status,
		CreatedAt: l.CreatedAt,
	}
}

// CampaignAssignment links a lead or raw candidate to an outreach campaign.
type CampaignAssignment struct {
	CampaignID   string    `json:"campaign_id"`
	CampaignName string    `json:"campaign_name"`
	IdentityKey  string    `json:"identity_key"`
	PlaceID      string    `json:"place_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	AssignedAt   time.Time `json:"assigned_at"`
}
