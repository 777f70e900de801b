package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// maxBatchSize is the Salesforce Collections API limit per request.
const maxBatchSize = 200

// Lead status picklist values used by the mirror.
const (
	LeadStatusOpen      = "Open - Not Contacted"
	LeadStatusWorking   = "Working - Contacted"
	LeadStatusConverted = "Closed - Converted"
	LeadStatusRejected  = "Closed - Not Converted"
)

// Lead represents a Salesforce Lead record.
type Lead struct {
	ID         string  `json:"Id" salesforce:"Id"`
	Company    string  `json:"Company" salesforce:"Company"`
	LastName   string  `json:"LastName" salesforce:"LastName"`
	Email      string  `json:"Email" salesforce:"Email"`
	Phone      string  `json:"Phone" salesforce:"Phone"`
	Website    string  `json:"Website" salesforce:"Website"`
	Street     string  `json:"Street" salesforce:"Street"`
	City       string  `json:"City" salesforce:"City"`
	Industry   string  `json:"Industry" salesforce:"Industry"`
	LeadSource string  `json:"LeadSource" salesforce:"LeadSource"`
	Status     string  `json:"Status" salesforce:"Status"`
	Rating     string  `json:"Rating" salesforce:"Rating"`
	ExternalID string  `json:"External_Id__c" salesforce:"External_Id__c"`
	Score      float64 `json:"Lead_Score__c" salesforce:"Lead_Score__c"`
}

// leadFields are the SOQL fields selected for Lead queries.
var leadFields = []string{
	"Id", "Company", "LastName", "Email", "Phone", "Website", "Street",
	"City", "Industry", "LeadSource", "Status", "Rating",
	"External_Id__c", "Lead_Score__c",
}

// Fields returns the writable fields of l, omitting empty values.
func (l Lead) Fields() map[string]any {
	m := make(map[string]any, len(leadFields))
	set := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	set("Company", l.Company)
	set("LastName", l.LastName)
	set("Email", l.Email)
	set("Phone", l.Phone)
	set("Website", l.Website)
	set("Street", l.Street)
	set("City", l.City)
	set("Industry", l.Industry)
	set("LeadSource", l.LeadSource)
	set("Status", l.Status)
	set("Rating", l.Rating)
	set("External_Id__c", l.ExternalID)
	m["Lead_Score__c"] = l.Score
	return m
}

// CreateLeads inserts leads in batches of 200 (SF Collections API limit).
// Results are returned in input order for every batch sent before a failure.
func CreateLeads(ctx context.Context, c Client, leads []Lead) ([]CollectionResult, error) {
	if len(leads) == 0 {
		return nil, nil
	}

	var allResults []CollectionResult
	for start := 0; start < len(leads); start += maxBatchSize {
		end := min(start+maxBatchSize, len(leads))

		records := make([]map[string]any, 0, end-start)
		for _, l := range leads[start:end] {
			records = append(records, l.Fields())
		}

		results, err := c.InsertCollection(ctx, "Lead", records)
		if err != nil {
			return allResults, eris.Wrap(err, fmt.Sprintf("sf: create leads batch %d-%d", start, end))
		}
		allResults = append(allResults, results...)
	}
	return allResults, nil
}

// FindLeadByExternalID returns the Lead carrying the given identity key, or
// nil if none exists.
func FindLeadByExternalID(ctx context.Context, c Client, externalID string) (*Lead, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Lead WHERE External_Id__c = '%s' LIMIT 1",
		strings.Join(leadFields, ", "),
		escapeSoql(externalID),
	)

	var leads []Lead
	if err := c.Query(ctx, soql, &leads); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find lead by external id %s", externalID))
	}
	if len(leads) == 0 {
		return nil, nil
	}
	return &leads[0], nil
}

// UpdateLeadStatus sets the Status picklist on a Lead.
func UpdateLeadStatus(ctx context.Context, c Client, leadID, status string) error {
	if leadID == "" {
		return eris.New("sf: lead id is required")
	}
	if err := c.UpdateOne(ctx, "Lead", leadID, map[string]any{"Status": status}); err != nil {
		return eris.Wrap(err, fmt.Sprintf("sf: update lead status %s", leadID))
	}
	return nil
}

// escapeSoql escapes backslashes and single quotes in SOQL string literals.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}
