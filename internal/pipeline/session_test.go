package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
)

func testCandidates() []model.Candidate {
	return []model.Candidate{
		{PlaceID: "p1", Name: "Da Michele", Address: "Via Sersale 1, Napoli"},
		{PlaceID: "p2", Name: "Sorbillo", Address: "Via dei Tribunali 32, Napoli"},
		{PlaceID: "p3", Name: "Starita", Address: "Via Materdei 27, Napoli"},
	}
}

func loadedSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession()
	require.NoError(t, s.LoadResults(" pizzeria ", "Napoli", testCandidates()))
	return s
}

func ids(cands []model.Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.PlaceID)
	}
	return out
}

func TestSession_HappyPath(t *testing.T) {
	s := NewSession()
	assert.Equal(t, StepSearch, s.Step())

	require.NoError(t, s.LoadResults("pizzeria", "Napoli", testCandidates()))
	assert.Equal(t, StepSelect, s.Step())

	n, err := s.Select("p1", "p3")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Transition(StepAction))
	require.NoError(t, s.MarkSaved("p1"))
	require.NoError(t, s.Transition(StepStats))
	assert.Equal(t, StepStats, s.Step())
}

func TestSession_InvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Session)
		to    Step
	}{
		{name: "search to action", setup: func(*Session) {}, to: StepAction},
		{name: "search to stats", setup: func(*Session) {}, to: StepStats},
		{name: "select back to search", setup: func(s *Session) {
			_ = s.LoadResults("bar", "Roma", testCandidates())
		}, to: StepSearch},
		{name: "select to autopilot", setup: func(s *Session) {
			_ = s.LoadResults("bar", "Roma", testCandidates())
		}, to: StepAutoPilot},
		{name: "stats to select", setup: func(s *Session) {
			_ = s.Transition(StepAutoPilot)
			_ = s.Transition(StepStats)
		}, to: StepSelect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession()
			tt.setup(s)
			before := s.Step()
			err := s.Transition(tt.to)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, before, s.Step())
		})
	}
}

func TestSession_AutoPilotPath(t *testing.T) {
	s := NewSession()
	require.NoError(t, s.Transition(StepAutoPilot))
	require.NoError(t, s.Transition(StepStats))

	s.Reset()
	assert.Equal(t, StepSearch, s.Step())
}

func TestSession_ActionNeedsSelection(t *testing.T) {
	s := loadedSession(t)
	assert.ErrorIs(t, s.Transition(StepAction), ErrEmptySelection)
	assert.Equal(t, StepSelect, s.Step())
}

func TestSession_LoadResultsDropsDuplicates(t *testing.T) {
	s := NewSession()
	cands := append(testCandidates(), model.Candidate{PlaceID: "p2", Name: "dup"}, model.Candidate{Name: "no id"})
	require.NoError(t, s.LoadResults("pizzeria", "Napoli", cands))

	got := s.Candidates()
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids(got))
	assert.Equal(t, "Sorbillo", got[1].Name)
	assert.Equal(t, "pizzeria", s.Sector())
	assert.Equal(t, "Napoli", s.City())

	assert.ErrorIs(t, s.LoadResults("bar", "Roma", nil), ErrInvalidTransition)
}

func TestSession_CandidatesIsACopy(t *testing.T) {
	s := loadedSession(t)
	got := s.Candidates()
	got[0].Name = "changed"
	assert.Equal(t, "Da Michele", s.Candidates()[0].Name)
}

func TestSession_Selection(t *testing.T) {
	s := loadedSession(t)

	_, err := s.Select("nope")
	assert.ErrorIs(t, err, ErrUnknownCandidate)
	assert.Empty(t, s.Selected())

	n, err := s.Select("p3", "p1", "p3")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"p1", "p3"}, ids(s.Selected()))
	assert.True(t, s.IsSelected("p3"))

	require.NoError(t, s.Deselect("p3", "unknown"))
	assert.Equal(t, []string{"p1"}, ids(s.Selected()))

	n, err = s.SelectAll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, s.Selected(), 3)

	s.ClearSelection()
	assert.Empty(t, s.Selected())
}

func TestSession_SelectionNotAllowedBeforeSearch(t *testing.T) {
	s := NewSession()
	_, err := s.Select("p1")
	assert.ErrorIs(t, err, ErrWrongStep)
	assert.ErrorIs(t, s.Deselect("p1"), ErrWrongStep)
	assert.ErrorIs(t, s.ApplyOutcomes(nil), ErrWrongStep)
}

func TestSession_ApplyOutcomesAndPending(t *testing.T) {
	s := loadedSession(t)
	_, err := s.SelectAll()
	require.NoError(t, err)
	assert.Len(t, s.Pending(), 3)

	r1 := &model.EnrichmentResult{PlaceID: "p1", Score: 82, Grade: model.GradeB}
	require.NoError(t, s.ApplyOutcomes([]model.EnrichmentOutcome{
		{PlaceID: "p1", Status: model.EnrichmentEnriched, Result: r1},
		{PlaceID: "p2", Status: model.EnrichmentFailed, Error: "enrichment: timeout"},
		{PlaceID: "ghost", Status: model.EnrichmentEnriched, Result: &model.EnrichmentResult{}},
	}))

	got, ok := s.Result("p1")
	require.True(t, ok)
	assert.Equal(t, 82.0, got.Score)

	msg, ok := s.Failure("p2")
	require.True(t, ok)
	assert.Equal(t, "enrichment: timeout", msg)

	_, ok = s.Result("p2")
	assert.False(t, ok)
	assert.Equal(t, []string{"p2", "p3"}, ids(s.Pending()))
	assert.Len(t, s.Results(), 1)

	// A later success clears the failure; a later failure keeps the result.
	require.NoError(t, s.ApplyOutcomes([]model.EnrichmentOutcome{
		{PlaceID: "p2", Status: model.EnrichmentEnriched, Result: &model.EnrichmentResult{PlaceID: "p2", Score: 40}},
		{PlaceID: "p1", Status: model.EnrichmentFailed, Error: "boom"},
		{PlaceID: "p3", Status: model.EnrichmentSkipped},
	}))
	_, failed := s.Failure("p2")
	assert.False(t, failed)
	got, ok = s.Result("p1")
	require.True(t, ok)
	assert.Equal(t, 82.0, got.Score)
	assert.Equal(t, []string{"p3"}, ids(s.Pending()))
}

func TestSession_ResultsIsACopy(t *testing.T) {
	s := loadedSession(t)
	require.NoError(t, s.ApplyOutcomes([]model.EnrichmentOutcome{
		{PlaceID: "p1", Status: model.EnrichmentEnriched, Result: &model.EnrichmentResult{PlaceID: "p1"}},
	}))
	r := s.Results()
	delete(r, "p1")
	_, ok := s.Result("p1")
	assert.True(t, ok)
}

func TestSession_SelectedWithScores(t *testing.T) {
	s := loadedSession(t)
	_, err := s.Select("p1", "p2")
	require.NoError(t, err)
	require.NoError(t, s.ApplyOutcomes([]model.EnrichmentOutcome{
		{PlaceID: "p2", Status: model.EnrichmentEnriched, Result: &model.EnrichmentResult{PlaceID: "p2", Score: 91}},
	}))

	got := s.SelectedWithScores()
	require.Len(t, got, 2)
	assert.Nil(t, got[0].Enrichment)
	require.NotNil(t, got[1].Enrichment)
	assert.Equal(t, 91.0, got[1].Enrichment.Score)
	assert.Equal(t, "pizzeria", got[1].Sector)
	assert.Equal(t, "Napoli", got[1].City)
}

func TestSession_MarkSaved(t *testing.T) {
	s := loadedSession(t)
	_, err := s.Select("p1", "p2")
	require.NoError(t, err)

	assert.ErrorIs(t, s.MarkSaved("p1"), ErrWrongStep)

	require.NoError(t, s.Transition(StepAction))
	require.NoError(t, s.MarkSaved("p1", "ghost"))

	assert.True(t, s.IsSaved("p1"))
	assert.False(t, s.IsSaved("ghost"))
	assert.Equal(t, []string{"p2"}, ids(s.Selected()))

	n, err := s.Select("p1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = s.SelectAll()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"p2", "p3"}, ids(s.Selected()))
}

func TestSession_Reset(t *testing.T) {
	s := loadedSession(t)
	_, err := s.SelectAll()
	require.NoError(t, err)
	require.NoError(t, s.ApplyOutcomes([]model.EnrichmentOutcome{
		{PlaceID: "p1", Status: model.EnrichmentEnriched, Result: &model.EnrichmentResult{PlaceID: "p1"}},
		{PlaceID: "p2", Status: model.EnrichmentFailed, Error: "x"},
	}))
	require.NoError(t, s.Transition(StepAction))
	require.NoError(t, s.MarkSaved("p3"))

	s.Reset()

	assert.Equal(t, StepSearch, s.Step())
	assert.Empty(t, s.Candidates())
	assert.Empty(t, s.Selected())
	assert.Empty(t, s.Results())
	_, failed := s.Failure("p2")
	assert.False(t, failed)
	assert.False(t, s.IsSaved("p3"))
	assert.Empty(t, s.Sector())

	require.NoError(t, s.LoadResults("bar", "Roma", testCandidates()))
	n, err := s.SelectAll()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
