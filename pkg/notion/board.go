package notion

import (
	"context"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// StatusQueued is the board status of a lead waiting for outreach.
const StatusQueued = "Queued"

// Property names on the outreach board.
const (
	PropName     = "Name"
	PropEmail    = "Email"
	PropPhone    = "Phone"
	PropWebsite  = "Website"
	PropScore    = "Score"
	PropGrade    = "Grade"
	PropCampaign = "Campaign"
	PropPlaceID  = "Place ID"
	PropStatus   = "Status"
)

// LeadPage is one lead queued on the outreach board.
type LeadPage struct {
	Name     string
	Email    string
	Phone    string
	Website  string
	Score    float64
	Grade    string
	Campaign string
	PlaceID  string
}

// Properties renders the page properties. Empty optional fields are omitted
// so Notion does not reject blank emails or URLs.
func (l LeadPage) Properties() notionapi.Properties {
	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: []notionapi.RichText{richText(l.Name)},
		},
		PropScore: notionapi.NumberProperty{
			Type:   notionapi.PropertyTypeNumber,
			Number: l.Score,
		},
		PropCampaign: richTextProperty(l.Campaign),
		PropPlaceID:  richTextProperty(l.PlaceID),
		PropStatus: notionapi.StatusProperty{
			Status: notionapi.Status{Name: StatusQueued},
		},
	}
	if l.Grade != "" {
		props[PropGrade] = richTextProperty(l.Grade)
	}
	if l.Email != "" {
		props[PropEmail] = notionapi.EmailProperty{Type: notionapi.PropertyTypeEmail, Email: l.Email}
	}
	if l.Phone != "" {
		props[PropPhone] = notionapi.PhoneNumberProperty{Type: notionapi.PropertyTypePhoneNumber, PhoneNumber: l.Phone}
	}
	if l.Website != "" {
		props[PropWebsite] = notionapi.URLProperty{Type: notionapi.PropertyTypeURL, URL: l.Website}
	}
	return props
}

// NewLeadPageRequest builds the create request for l in database dbID.
func NewLeadPageRequest(dbID string, l LeadPage) *notionapi.PageCreateRequest {
	return &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(dbID),
		},
		Properties: l.Properties(),
	}
}

// QueryAll fetches every page matching filter, following cursors.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page
	req := &notionapi.DatabaseQueryRequest{}
	if filter != nil {
		req.Filter = filter.Filter
		req.Sorts = filter.Sorts
		req.PageSize = filter.PageSize
	}

	for {
		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}
		all = append(all, resp.Results...)
		if !resp.HasMore || resp.NextCursor == "" {
			return all, nil
		}
		next := *req
		next.StartCursor = resp.NextCursor
		req = &next
	}
}

// QueuedPlaceIDs returns the place ids of every lead still queued on the
// board.
func QueuedPlaceIDs(ctx context.Context, c Client, dbID string) (map[string]bool, error) {
	pages, err := QueryAll(ctx, c, dbID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: PropStatus,
			Status:   &notionapi.StatusFilterCondition{Equals: StatusQueued},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "notion: query queued leads")
	}

	out := make(map[string]bool, len(pages))
	for _, p := range pages {
		if id := plainText(p.Properties[PropPlaceID]); id != "" {
			out[id] = true
		}
	}
	return out, nil
}

// CreateLeadPages queues each lead on the board and returns how many pages
// were created before the first error.
func CreateLeadPages(ctx context.Context, c Client, dbID string, leads []LeadPage) (int, error) {
	created := 0
	for _, l := range leads {
		if ctx.Err() != nil {
			return created, eris.Wrap(ctx.Err(), "notion: create lead pages cancelled")
		}
		if _, err := c.CreatePage(ctx, NewLeadPageRequest(dbID, l)); err != nil {
			return created, eris.Wrapf(err, "notion: create lead page %s", l.PlaceID)
		}
		created++
	}
	return created, nil
}

func richText(s string) notionapi.RichText {
	return notionapi.RichText{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}
}

func richTextProperty(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type:     notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{richText(s)},
	}
}

// plainText flattens a rich text property as returned by the API.
func plainText(p notionapi.Property) string {
	var parts []notionapi.RichText
	switch v := p.(type) {
	case *notionapi.RichTextProperty:
		parts = v.RichText
	case notionapi.RichTextProperty:
		parts = v.RichText
	default:
		return ""
	}
	var b strings.Builder
	for _, rt := range parts {
		switch {
		case rt.PlainText != "":
			b.WriteString(rt.PlainText)
		case rt.Text != nil:
			b.WriteString(rt.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}
