package campaign

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/notion"
)

// Notion queues one page per lead on an outreach board database.
type Notion struct {
	client notion.Client
	dbID   string
	now    func() time.Time
}

// NewNotion creates a Notion board dispatcher.
func NewNotion(client notion.Client, dbID string) *Notion {
	return &Notion{client: client, dbID: dbID, now: time.Now}
}

// Name implements Dispatcher.
func (n *Notion) Name() string { return "notion" }

// Dispatch implements Dispatcher. Leads already queued on the board are not
// queued twice.
func (n *Notion) Dispatch(ctx context.Context, c Campaign, cands []model.CandidateWithScore) ([]model.CampaignAssignment, error) {
	queued, err := notion.QueuedPlaceIDs(ctx, n.client, n.dbID)
	if err != nil {
		return nil, eris.Wrap(err, "notion: load board")
	}

	var (
		pages  []notion.LeadPage
		picked []model.CandidateWithScore
	)
	for _, cand := range cands {
		if cand.PlaceID != "" && queued[cand.PlaceID] {
			zap.L().Debug("lead already queued on board",
				zap.String("stage", "campaign"),
				zap.String("place_id", cand.PlaceID),
			)
			continue
		}
		pages = append(pages, leadPage(c, cand))
		picked = append(picked, cand)
	}

	created, err := notion.CreateLeadPages(ctx, n.client, n.dbID, pages)
	now := n.now()
	out := make([]model.CampaignAssignment, 0, created)
	for _, cand := range picked[:created] {
		out = append(out, assign(c, cand, now))
	}
	return out, err
}

func leadPage(c Campaign, cand model.CandidateWithScore) notion.LeadPage {
	p := notion.LeadPage{
		Name:     cand.Name,
		Email:    cand.ContactEmail(),
		Phone:    cand.Phone,
		Website:  cand.Website,
		Campaign: c.Name,
		PlaceID:  cand.PlaceID,
	}
	if score, ok := cand.Score(); ok {
		p.Score = score
		p.Grade = string(cand.Enrichment.Grade)
	}
	return p
}
