// Package pipeline holds the operator-driven wizard state: the candidates of
// one search, what the operator selected, and what happened to each.
package pipeline

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen/internal/model"
)

// Step is a wizard state.
type Step string

const (
	StepSearch    Step = "search"
	StepSelect    Step = "select"
	StepAction    Step = "action"
	StepStats     Step = "stats"
	StepAutoPilot Step = "autopilot"
)

var (
	// ErrInvalidTransition is returned for a move the wizard does not allow.
	ErrInvalidTransition = eris.New("pipeline: invalid transition")

	// ErrWrongStep is returned when an operation is not available in the
	// current step.
	ErrWrongStep = eris.New("pipeline: operation not allowed in this step")

	// ErrUnknownCandidate is returned for a place id not in the results.
	ErrUnknownCandidate = eris.New("pipeline: unknown candidate")

	// ErrEmptySelection is returned when proceeding with nothing selected.
	ErrEmptySelection = eris.New("pipeline: nothing selected")
)

// transitions lists the forward moves. Reset is always allowed.
var transitions = map[Step][]Step{
	StepSearch:    {StepSelect, StepAutoPilot},
	StepSelect:    {StepAction},
	StepAction:    {StepStats},
	StepAutoPilot: {StepStats},
}

// SelectionSet is a set of place ids.
type SelectionSet map[string]struct{}

// Has reports whether id is in the set.
func (s SelectionSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Session is the state of one wizard run. It is single-writer and not safe
// for concurrent use.
type Session struct {
	step      Step
	sector    string
	city      string
	cands     []model.Candidate
	index     map[string]int
	selection SelectionSet
	results   map[string]model.EnrichmentResult
	failures  map[string]string
	saved     map[string]bool
}

// NewSession returns a session at StepSearch.
func NewSession() *Session {
	s := &Session{}
	s.Reset()
	return s
}

// Step returns the current step.
func (s *Session) Step() Step { return s.step }

// Sector returns the sector of the loaded search.
func (s *Session) Sector() string { return s.sector }

// City returns the city of the loaded search.
func (s *Session) City() string { return s.city }

// Reset returns to StepSearch and drops candidates, selection, results,
// failures and saved marks.
func (s *Session) Reset() {
	s.step = StepSearch
	s.sector = ""
	s.city = ""
	s.cands = nil
	s.index = map[string]int{}
	s.selection = SelectionSet{}
	s.results = map[string]model.EnrichmentResult{}
	s.failures = map[string]string{}
	s.saved = map[string]bool{}
}

// Transition moves to the next step.
func (s *Session) Transition(to Step) error {
	for _, next := range transitions[s.step] {
		if next == to {
			if to == StepAction && len(s.selection) == 0 {
				return ErrEmptySelection
			}
			s.step = to
			return nil
		}
	}
	return eris.Wrapf(ErrInvalidTransition, "pipeline: %s -> %s", s.step, to)
}

// LoadResults stores the candidates of a search and moves to StepSelect.
// Candidates without a place id and repeated place ids are dropped.
func (s *Session) LoadResults(sector, city string, cands []model.Candidate) error {
	if s.step != StepSearch {
		return eris.Wrapf(ErrInvalidTransition, "pipeline: load results in %s", s.step)
	}
	s.sector = strings.TrimSpace(sector)
	s.city = strings.TrimSpace(city)
	s.cands = make([]model.Candidate, 0, len(cands))
	for _, c := range cands {
		if c.PlaceID == "" {
			continue
		}
		if _, dup := s.index[c.PlaceID]; dup {
			continue
		}
		s.index[c.PlaceID] = len(s.cands)
		s.cands = append(s.cands, c)
	}
	return s.Transition(StepSelect)
}

// Candidates returns the loaded candidates in search order.
func (s *Session) Candidates() []model.Candidate {
	out := make([]model.Candidate, len(s.cands))
	copy(out, s.cands)
	return out
}

func (s *Session) editable() error {
	if s.step != StepSelect && s.step != StepAction {
		return eris.Wrapf(ErrWrongStep, "pipeline: step %s", s.step)
	}
	return nil
}

// Select adds place ids to the selection and returns how many were added.
// Saved candidates are never selected.
func (s *Session) Select(ids ...string) (int, error) {
	if err := s.editable(); err != nil {
		return 0, err
	}
	for _, id := range ids {
		if _, ok := s.index[id]; !ok {
			return 0, eris.Wrapf(ErrUnknownCandidate, "pipeline: place id %s", id)
		}
	}
	added := 0
	for _, id := range ids {
		if s.saved[id] || s.selection.Has(id) {
			continue
		}
		s.selection[id] = struct{}{}
		added++
	}
	return added, nil
}

// Deselect removes place ids from the selection. Unknown ids are ignored.
func (s *Session) Deselect(ids ...string) error {
	if err := s.editable(); err != nil {
		return err
	}
	for _, id := range ids {
		delete(s.selection, id)
	}
	return nil
}

// SelectAll selects every unsaved candidate.
func (s *Session) SelectAll() (int, error) {
	ids := make([]string, 0, len(s.cands))
	for _, c := range s.cands {
		ids = append(ids, c.PlaceID)
	}
	return s.Select(ids...)
}

// ClearSelection empties the selection.
func (s *Session) ClearSelection() {
	s.selection = SelectionSet{}
}

// IsSelected reports whether id is selected.
func (s *Session) IsSelected(id string) bool {
	return s.selection.Has(id)
}

// Selected returns the selected candidates in search order.
func (s *Session) Selected() []model.Candidate {
	out := make([]model.Candidate, 0, len(s.selection))
	for _, c := range s.cands {
		if s.selection.Has(c.PlaceID) {
			out = append(out, c)
		}
	}
	return out
}

// Pending returns selected candidates with no current enrichment result.
func (s *Session) Pending() []model.Candidate {
	var out []model.Candidate
	for _, c := range s.Selected() {
		if _, ok := s.results[c.PlaceID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

// ApplyOutcomes records a batch of enrichment outcomes. A success replaces
// the current result and clears any earlier failure; a failure keeps the
// earlier result, if any.
func (s *Session) ApplyOutcomes(outcomes []model.EnrichmentOutcome) error {
	if err := s.editable(); err != nil {
		return err
	}
	for _, o := range outcomes {
		if _, ok := s.index[o.PlaceID]; !ok {
			continue
		}
		switch o.Status {
		case model.EnrichmentEnriched:
			if o.Result != nil {
				s.results[o.PlaceID] = *o.Result
				delete(s.failures, o.PlaceID)
			}
		case model.EnrichmentFailed:
			s.failures[o.PlaceID] = o.Error
		}
	}
	return nil
}

// Results returns a copy of the current enrichment results.
func (s *Session) Results() map[string]model.EnrichmentResult {
	out := make(map[string]model.EnrichmentResult, len(s.results))
	for k, v := range s.results {
		out[k] = v
	}
	return out
}

// Result returns the current enrichment result of id.
func (s *Session) Result(id string) (model.EnrichmentResult, bool) {
	r, ok := s.results[id]
	return r, ok
}

// Failure returns the last enrichment error of id.
func (s *Session) Failure(id string) (string, bool) {
	msg, ok := s.failures[id]
	return msg, ok
}

// SelectedWithScores pairs the selection with current results, sector and
// city, ready for persistence or a campaign.
func (s *Session) SelectedWithScores() []model.CandidateWithScore {
	sel := s.Selected()
	out := make([]model.CandidateWithScore, 0, len(sel))
	for _, c := range sel {
		cws := model.CandidateWithScore{Candidate: c, Sector: s.sector, City: s.city}
		if r, ok := s.results[c.PlaceID]; ok {
			cws.Enrichment = &r
		}
		out = append(out, cws)
	}
	return out
}

// MarkSaved flags candidates as persisted and drops them from the
// selection. Saved candidates stay read-only until Reset.
func (s *Session) MarkSaved(ids ...string) error {
	if s.step != StepAction {
		return eris.Wrapf(ErrWrongStep, "pipeline: mark saved in %s", s.step)
	}
	for _, id := range ids {
		if _, ok := s.index[id]; !ok {
			continue
		}
		s.saved[id] = true
		delete(s.selection, id)
	}
	return nil
}

// IsSaved reports whether id was persisted in this session.
func (s *Session) IsSaved(id string) bool {
	return s.saved[id]
}
