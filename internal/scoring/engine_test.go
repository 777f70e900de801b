package scoring

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/enrichment"
)

func ptr(f float64) *float64 { return &f }

func TestDefaultWeights_Valid(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 100.0, w.Sum(), 0.001)
	require.NoError(t, ValidateWeights(w))
}

func TestValidateWeights(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Weights)
		wantErr string
	}{
		{"negative", func(w *Weights) { w.Phone = -10; w.Email = 35 }, "phone weight must be >= 0"},
		{"bad sum", func(w *Weights) { w.Rating = 10 }, "weights must sum to 100"},
		{"saturation", func(w *Weights) { w.ReviewSaturation = 0 }, "review_saturation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := DefaultWeights()
			tt.mutate(&w)
			err := ValidateWeights(w)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadWeights(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rating: 40\nreviews: 15\n"), 0o600))

	w, err := LoadWeights(path)
	require.NoError(t, err)
	assert.InDelta(t, 40.0, w.Rating, 0.001)
	assert.InDelta(t, 15.0, w.Reviews, 0.001)
	assert.InDelta(t, 20.0, w.Website, 0.001)
	assert.Equal(t, 200, w.ReviewSaturation)
}

func TestLoadWeights_EmptyPathUsesDefaults(t *testing.T) {
	w, err := LoadWeights("")
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), w)
}

func TestLoadWeights_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadWeights(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoring: read weights")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("rating: [1,2"), 0o600))
	_, err = LoadWeights(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scoring: parse weights")

	unbalanced := filepath.Join(dir, "unbalanced.yaml")
	require.NoError(t, os.WriteFile(unbalanced, []byte("rating: 90\n"), 0o600))
	_, err = LoadWeights(unbalanced)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 100")
}

func TestNewEngine_RejectsInvalid(t *testing.T) {
	w := DefaultWeights()
	w.Email = 0
	_, err := NewEngine(w)
	require.Error(t, err)
}

func TestEvaluate_PerfectCandidate(t *testing.T) {
	e := NewDefaultEngine()
	r := e.Evaluate(Signals{Rating: 5, ReviewCount: 500, HasWebsite: true, HasPhone: true, HasEmail: true})
	assert.InDelta(t, 100.0, r.Score, 0.001)
	assert.Equal(t, model.GradeA, r.Grade)
	assert.InDelta(t, 30.0, r.Breakdown[ComponentRating], 0.001)
	assert.InDelta(t, 25.0, r.Breakdown[ComponentReviews], 0.001)
	assert.NotEmpty(t, r.Recommendation)
}

func TestEvaluate_Empty(t *testing.T) {
	r := NewDefaultEngine().Evaluate(Signals{})
	assert.InDelta(t, 0.0, r.Score, 0.001)
	assert.Equal(t, model.GradeF, r.Grade)
	assert.Len(t, r.Breakdown, 5)
}

func TestEvaluate_Deterministic(t *testing.T) {
	e := NewDefaultEngine()
	s := Signals{Rating: 4.3, ReviewCount: 87, HasWebsite: true}
	first := e.Evaluate(s)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, e.Evaluate(s))
	}
}

func TestEvaluate_ReviewsMonotonic(t *testing.T) {
	e := NewDefaultEngine()
	prev := -1.0
	for _, n := range []int{0, 1, 5, 20, 100, 200, 1000} {
		got := e.Evaluate(Signals{ReviewCount: n}).Breakdown[ComponentReviews]
		assert.GreaterOrEqual(t, got, prev, "reviews=%d", n)
		prev = got
	}
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		score float64
		want  model.Grade
	}{
		{100, model.GradeA},
		{85, model.GradeA},
		{84.99, model.GradeB},
		{70, model.GradeB},
		{55, model.GradeC},
		{40, model.GradeD},
		{39.9, model.GradeF},
		{0, model.GradeF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GradeFor(tt.score), "score=%v", tt.score)
	}
}

func TestNormalize_ExternalScoreClamped(t *testing.T) {
	e := NewDefaultEngine()
	c := model.Candidate{PlaceID: "p1", Rating: 4.0}

	out := e.Normalize(c, &enrichment.Response{Score: ptr(130), Breakdown: map[string]float64{"custom": 1}})
	assert.Equal(t, "p1", out.PlaceID)
	assert.InDelta(t, 100.0, out.Score, 0.001)
	assert.Equal(t, model.GradeA, out.Grade)
	assert.Equal(t, map[string]float64{"custom": 1}, out.Breakdown)
	assert.Equal(t, RecommendationFor(model.GradeA), out.Recommendation)

	out = e.Normalize(c, &enrichment.Response{Score: ptr(-4)})
	assert.InDelta(t, 0.0, out.Score, 0.001)
	assert.Equal(t, model.GradeF, out.Grade)
}

func TestNormalize_KeepsExternalGradeAndRecommendation(t *testing.T) {
	out := NewDefaultEngine().Normalize(model.Candidate{PlaceID: "p1"}, &enrichment.Response{
		Score:          ptr(72),
		Grade:          "b",
		Recommendation: "Call on Tuesday",
		Email:          " owner@bar.it ",
	})
	assert.Equal(t, model.GradeB, out.Grade)
	assert.Equal(t, "Call on Tuesday", out.Recommendation)
	assert.Equal(t, "owner@bar.it", out.Email)
}

func TestNormalize_InvalidGradeDerived(t *testing.T) {
	out := NewDefaultEngine().Normalize(model.Candidate{PlaceID: "p1"}, &enrichment.Response{Score: ptr(60), Grade: "Z"})
	assert.Equal(t, model.GradeC, out.Grade)
}

func TestNormalize_MissingScoreComputed(t *testing.T) {
	e := NewDefaultEngine()
	c := model.Candidate{PlaceID: "p1", Rating: 5, ReviewCount: 200, Website: "https://x.it", Phone: "081 555"}

	out := e.Normalize(c, &enrichment.Response{Grade: "A", Email: "info@x.it"})
	assert.InDelta(t, 100.0, out.Score, 0.001)
	assert.Equal(t, model.GradeA, out.Grade)
	assert.InDelta(t, 15.0, out.Breakdown[ComponentEmail], 0.001)

	withoutEmail := e.Normalize(c, nil)
	assert.InDelta(t, 85.0, withoutEmail.Score, 0.001)
	assert.Empty(t, withoutEmail.Email)
}

func TestNormalize_NaNScoreComputed(t *testing.T) {
	out := NewDefaultEngine().Normalize(model.Candidate{PlaceID: "p1"}, &enrichment.Response{Score: ptr(math.NaN())})
	assert.InDelta(t, 0.0, out.Score, 0.001)
	assert.Equal(t, model.GradeF, out.Grade)
}

func TestNormalize_DoesNotAliasResponseBreakdown(t *testing.T) {
	resp := &enrichment.Response{Score: ptr(50), Breakdown: map[string]float64{"a": 1}}
	out := NewDefaultEngine().Normalize(model.Candidate{}, resp)
	out.Breakdown["a"] = 99
	assert.InDelta(t, 1.0, resp.Breakdown["a"], 0.001)
}
