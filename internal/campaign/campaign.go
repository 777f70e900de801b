// Package campaign hands qualified leads to a downstream outreach system. It
// names the target list only; delivery belongs to the downstream system.
package campaign

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen/internal/leads"
	"github.com/sells-group/leadgen/internal/model"
)

// ErrDisabled is returned when no campaign driver is configured.
var ErrDisabled = eris.New("campaign: disabled")

// ErrInvalidName is returned for a blank campaign name.
var ErrInvalidName = eris.New("campaign: name is required")

// Campaign identifies one outreach list.
type Campaign struct {
	ID   string `json:"campaign_id"`
	Name string `json:"name"`
}

// Dispatcher attaches leads to a campaign in a downstream system and returns
// one assignment per lead it accepted.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, c Campaign, leads []model.CandidateWithScore) ([]model.CampaignAssignment, error)
}

// EmailRequirer is implemented by dispatchers that can only reach leads with
// a contact email.
type EmailRequirer interface {
	RequiresEmail() bool
}

func requiresEmail(d Dispatcher) bool {
	r, ok := d.(EmailRequirer)
	return ok && r.RequiresEmail()
}

// AssignmentRecorder persists campaign assignments.
type AssignmentRecorder interface {
	RecordAssignments(ctx context.Context, assignments []model.CampaignAssignment) (int, error)
}

// Result summarizes a created campaign.
type Result struct {
	CampaignID     string `json:"campaign_id"`
	Assigned       int    `json:"assigned"`
	SkippedNoEmail int    `json:"skipped_no_email"`
}

// Service creates campaigns through a Dispatcher.
type Service struct {
	dispatcher Dispatcher
	recorder   AssignmentRecorder
	newID      func() string
}

// NewService creates a campaign Service. recorder may be nil.
func NewService(d Dispatcher, recorder AssignmentRecorder) *Service {
	if d == nil {
		d = Disabled{}
	}
	return &Service{
		dispatcher: d,
		recorder:   recorder,
		newID:      uuid.NewString,
	}
}

// Enabled reports whether campaigns reach a real driver.
func (s *Service) Enabled() bool {
	_, off := s.dispatcher.(Disabled)
	return !off
}

// CreateCampaign dispatches leads to a new campaign and records the
// assignments. Repeated identities are dispatched once. When the dispatcher
// requires an email, leads without one are counted as skipped.
func (s *Service) CreateCampaign(ctx context.Context, name string, cands []model.CandidateWithScore) (Result, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, ErrInvalidName
	}
	if !s.Enabled() {
		return Result{}, ErrDisabled
	}

	c := Campaign{ID: s.newID(), Name: name}
	res := Result{CampaignID: c.ID}

	needEmail := requiresEmail(s.dispatcher)
	seen := make(map[string]bool, len(cands))
	targets := make([]model.CandidateWithScore, 0, len(cands))
	for _, cand := range cands {
		if needEmail && cand.ContactEmail() == "" {
			res.SkippedNoEmail++
			continue
		}
		key := leads.CandidateKey(cand.Candidate)
		if seen[key] {
			continue
		}
		seen[key] = true
		targets = append(targets, cand)
	}

	log := zap.L().With(
		zap.String("stage", "campaign"),
		zap.String("campaign_id", c.ID),
		zap.String("driver", s.dispatcher.Name()),
	)

	if len(targets) == 0 {
		log.Info("campaign has no reachable leads", zap.Int("skipped_no_email", res.SkippedNoEmail))
		return res, nil
	}

	// A failing driver may still have accepted some leads; those are recorded.
	assignments, dispatchErr := s.dispatcher.Dispatch(ctx, c, targets)
	res.Assigned = len(assignments)

	if s.recorder != nil && len(assignments) > 0 {
		if _, err := s.recorder.RecordAssignments(ctx, assignments); err != nil {
			if dispatchErr != nil {
				log.Warn("record partial assignments failed", zap.Error(err))
			} else {
				return res, eris.Wrap(err, "campaign: record assignments")
			}
		}
	}
	if dispatchErr != nil {
		return res, eris.Wrapf(dispatchErr, "campaign: dispatch %s", c.ID)
	}

	log.Info("campaign created",
		zap.Int("assigned", res.Assigned),
		zap.Int("skipped_no_email", res.SkippedNoEmail),
	)
	return res, nil
}

// assign builds the assignment record for one dispatched lead.
func assign(c Campaign, cand model.CandidateWithScore, at time.Time) model.CampaignAssignment {
	return model.CampaignAssignment{
		CampaignID:   c.ID,
		CampaignName: c.Name,
		IdentityKey:  leads.CandidateKey(cand.Candidate),
		PlaceID:      cand.PlaceID,
		Name:         cand.Name,
		Email:        cand.ContactEmail(),
		AssignedAt:   at.UTC(),
	}
}

// Disabled is the dispatcher used when campaigns are turned off.
type Disabled struct{}

// Name implements Dispatcher.
func (Disabled) Name() string { return "none" }

// Dispatch implements Dispatcher.
func (Disabled) Dispatch(context.Context, Campaign, []model.CandidateWithScore) ([]model.CampaignAssignment, error) {
	return nil, ErrDisabled
}
