package scoring

import (
	"math"
	"strings"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/pkg/enrichment"
)

// Component names used as breakdown keys.
const (
	ComponentRating  = "rating"
	ComponentReviews = "reviews"
	ComponentWebsite = "website"
	ComponentPhone   = "phone"
	ComponentEmail   = "email"
)

// Signals are the inputs to a score.
type Signals struct {
	Rating      float64
	ReviewCount int
	HasWebsite  bool
	HasPhone    bool
	HasEmail    bool
}

// SignalsFor extracts signals from a candidate and an optional discovered
// email.
func SignalsFor(c model.Candidate, email string) Signals {
	return Signals{
		Rating:      c.Rating,
		ReviewCount: c.ReviewCount,
		HasWebsite:  strings.TrimSpace(c.Website) != "",
		HasPhone:    strings.TrimSpace(c.Phone) != "",
		HasEmail:    strings.TrimSpace(email) != "" || strings.TrimSpace(c.Email) != "",
	}
}

// Result is a scored evaluation.
type Result struct {
	Score          float64
	Grade          model.Grade
	Breakdown      map[string]float64
	Recommendation string
}

// Engine scores candidates. It holds no mutable state and is safe for
// concurrent use.
type Engine struct {
	weights Weights
}

// NewEngine creates an engine with validated weights.
func NewEngine(w Weights) (*Engine, error) {
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}
	return &Engine{weights: w}, nil
}

// NewDefaultEngine creates an engine with DefaultWeights.
func NewDefaultEngine() *Engine {
	return &Engine{weights: DefaultWeights()}
}

// Weights returns the engine's component weights.
func (e *Engine) Weights() Weights {
	return e.weights
}

// Evaluate computes a score from signals.
func (e *Engine) Evaluate(s Signals) Result {
	w := e.weights
	breakdown := map[string]float64{
		ComponentRating:  round2(w.Rating * clamp01(s.Rating/5)),
		ComponentReviews: round2(w.Reviews * reviewFactor(s.ReviewCount, w.ReviewSaturation)),
		ComponentWebsite: boolPoints(s.HasWebsite, w.Website),
		ComponentPhone:   boolPoints(s.HasPhone, w.Phone),
		ComponentEmail:   boolPoints(s.HasEmail, w.Email),
	}

	var total float64
	for _, v := range breakdown {
		total += v
	}
	score := Clamp(round2(total))
	grade := GradeFor(score)

	return Result{
		Score:          score,
		Grade:          grade,
		Breakdown:      breakdown,
		Recommendation: RecommendationFor(grade),
	}
}

// Normalize builds the final enrichment result for a candidate. An external
// score is clamped to [0,100]; a missing one is computed from signals.
// Missing grades and recommendations are derived from the score. The
// returned result has no EnrichedAt; the caller stamps it.
func (e *Engine) Normalize(c model.Candidate, resp *enrichment.Response) model.EnrichmentResult {
	if resp == nil {
		resp = &enrichment.Response{}
	}
	email := strings.TrimSpace(resp.Email)
	computed := e.Evaluate(SignalsFor(c, email))

	out := model.EnrichmentResult{
		PlaceID:        c.PlaceID,
		Score:          computed.Score,
		Breakdown:      computed.Breakdown,
		Recommendation: strings.TrimSpace(resp.Recommendation),
		Email:          email,
	}

	if resp.Score != nil && !math.IsNaN(*resp.Score) {
		out.Score = Clamp(round2(*resp.Score))
		if len(resp.Breakdown) > 0 {
			out.Breakdown = copyBreakdown(resp.Breakdown)
		}
	}

	grade := model.Grade(strings.ToUpper(strings.TrimSpace(resp.Grade)))
	if resp.Score == nil || !grade.Valid() {
		grade = GradeFor(out.Score)
	}
	out.Grade = grade

	if out.Recommendation == "" {
		out.Recommendation = RecommendationFor(grade)
	}
	return out
}

// GradeFor maps a score to a letter grade.
func GradeFor(score float64) model.Grade {
	switch {
	case score >= 85:
		return model.GradeA
	case score >= 70:
		return model.GradeB
	case score >= 55:
		return model.GradeC
	case score >= 40:
		return model.GradeD
	default:
		return model.GradeF
	}
}

// RecommendationFor returns the stock recommendation for a grade.
func RecommendationFor(g model.Grade) string {
	switch g {
	case model.GradeA:
		return "High-value prospect: contact immediately"
	case model.GradeB:
		return "Strong prospect: include in the next campaign"
	case model.GradeC:
		return "Moderate prospect: nurture before outreach"
	case model.GradeD:
		return "Weak prospect: low priority"
	default:
		return "Poor fit: do not contact"
	}
}

// Clamp bounds a score to [0,100].
func Clamp(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}

func reviewFactor(count, saturation int) float64 {
	if count <= 0 || saturation <= 0 {
		return 0
	}
	return clamp01(math.Log1p(float64(count)) / math.Log1p(float64(saturation)))
}

func boolPoints(ok bool, weight float64) float64 {
	if ok {
		return weight
	}
	return 0
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func copyBreakdown(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
