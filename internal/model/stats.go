package model

// Breakdown counts leads in one industry or city.
type Breakdown struct {
	Total     int `json:"total"`
	Converted int `json:"converted"`
	Rejected  int `json:"rejected"`
}

// LeadStats is the aggregate view over the lead store. It is derived on
// every read and never persisted.
type LeadStats struct {
	TotalFound          int                  `json:"total_found"`
	SavedToCRM          int                  `json:"saved_to_crm"`
	EmailCampaignsSent  int                  `json:"email_campaigns_sent"`
	ConvertedToCustomer int                  `json:"converted_to_customer"`
	Rejected            int                  `json:"rejected"`
	Pending             int                  `json:"pending"`
	ConversionRate      float64              `json:"conversion_rate"`
	ByIndustry          map[string]Breakdown `json:"by_industry"`
	ByCity              map[string]Breakdown `json:"by_city"`
	RecentLeads         []LeadRecordSummary  `json:"recent_leads"`
}
