// Package enrich runs candidates through the enrichment endpoint one at a
// time under a fixed inter-call delay.
package enrich

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/sells-group/leadgen/internal/model"
	"github.com/sells-group/leadgen/internal/resilience"
	"github.com/sells-group/leadgen/internal/scoring"
	"github.com/sells-group/leadgen/pkg/enrichment"
)

// ErrNoScore is returned when the endpoint omits a score for a candidate
// that carries no signals to score locally, such as a bare place id.
var ErrNoScore = eris.New("enrich: no score for bare candidate")

// DefaultDelay is the minimum spacing between enrichment call starts.
const DefaultDelay = 500 * time.Millisecond

// Limiter paces enrichment calls. Wait blocks until the next call may start
// or ctx is done.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewRateLimiter returns a token bucket of size 1 refilled every delay.
// Waiting on it before each call keeps consecutive call starts at least
// delay apart, however long the limiter sat idle.
func NewRateLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Progress reports how far a batch has come.
type Progress struct {
	Processed int     `json:"processed"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// BatchOptions control EnrichBatch.
type BatchOptions struct {
	// Force re-enriches candidates that already have a current result.
	Force bool

	// OnProgress is called after every attempted candidate.
	OnProgress func(Progress)
}

// BatchResult is the outcome of EnrichBatch. Outcomes follow input order.
type BatchResult struct {
	Outcomes  []model.EnrichmentOutcome `json:"outcomes"`
	Attempted int                       `json:"attempted"`
	Enriched  int                       `json:"enriched"`
	Failed    int                       `json:"failed"`
	Skipped   int                       `json:"skipped"`
}

// Results returns the successful enrichment results keyed by place id.
func (r BatchResult) Results() map[string]model.EnrichmentResult {
	out := make(map[string]model.EnrichmentResult, r.Enriched)
	for _, o := range r.Outcomes {
		if o.Status == model.EnrichmentEnriched && o.Result != nil {
			out[o.PlaceID] = *o.Result
		}
	}
	return out
}

// Option configures a Worker.
type Option func(*Worker)

// WithLimiter replaces the default limiter.
func WithLimiter(l Limiter) Option {
	return func(w *Worker) {
		w.limiter = l
	}
}

// WithBreaker guards the endpoint with a circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(w *Worker) {
		w.breaker = cb
	}
}

// WithClock sets the time source used to stamp results.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

// Worker serializes calls to the enrichment endpoint. A single Worker must
// be shared by every caller of the same endpoint so the delay holds across
// them.
type Worker struct {
	client  enrichment.Client
	engine  *scoring.Engine
	limiter Limiter
	sem     *semaphore.Weighted
	breaker *resilience.CircuitBreaker
	now     func() time.Time
}

// NewWorker creates a Worker pacing calls with DefaultDelay unless a
// limiter is supplied.
func NewWorker(client enrichment.Client, engine *scoring.Engine, opts ...Option) *Worker {
	w := &Worker{
		client:  client,
		engine:  engine,
		limiter: NewRateLimiter(DefaultDelay),
		sem:     semaphore.NewWeighted(1),
		now:     time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	if w.engine == nil {
		w.engine = scoring.NewDefaultEngine()
	}
	return w
}

// Enrich waits for the limiter and enriches one candidate.
func (w *Worker) Enrich(ctx context.Context, c model.Candidate) (model.EnrichmentResult, error) {
	a := w.attempt(ctx, c)
	if a.waitErr != nil {
		return model.EnrichmentResult{}, eris.Wrap(a.waitErr, "enrich: rate limit wait")
	}
	if a.err != nil {
		return model.EnrichmentResult{}, a.err
	}
	return a.result, nil
}

// EnrichBatch enriches candidates strictly in order. Candidates with an
// entry in current are skipped unless opts.Force is set. A failure on one
// candidate is recorded as a failed outcome and the batch continues. When
// ctx is cancelled the outcomes gathered so far are returned with the
// context error.
func (w *Worker) EnrichBatch(ctx context.Context, cands []model.Candidate, current map[string]model.EnrichmentResult, opts BatchOptions) (BatchResult, error) {
	log := zap.L().With(zap.String("stage", "enrich"))

	skip := func(c model.Candidate) bool {
		_, ok := current[c.PlaceID]
		return ok && !opts.Force
	}

	total := 0
	for _, c := range cands {
		if !skip(c) {
			total++
		}
	}

	res := BatchResult{Outcomes: make([]model.EnrichmentOutcome, 0, len(cands))}
	for _, c := range cands {
		if skip(c) {
			res.Outcomes = append(res.Outcomes, model.EnrichmentOutcome{
				PlaceID: c.PlaceID,
				Status:  model.EnrichmentSkipped,
			})
			res.Skipped++
			continue
		}

		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "enrich: batch cancelled")
		}

		a := w.attempt(ctx, c)
		if a.waitErr != nil {
			log.Info("enrichment batch cancelled",
				zap.Int("attempted", res.Attempted),
				zap.Int("remaining", total-res.Attempted),
			)
			return res, eris.Wrap(a.waitErr, "enrich: batch cancelled")
		}

		res.Attempted++
		if a.err != nil {
			res.Failed++
			res.Outcomes = append(res.Outcomes, model.EnrichmentOutcome{
				PlaceID: c.PlaceID,
				Status:  model.EnrichmentFailed,
				Error:   a.err.Error(),
			})
			log.Warn("enrichment failed",
				zap.String("place_id", c.PlaceID),
				zap.Error(a.err),
			)
		} else {
			res.Enriched++
			r := a.result
			res.Outcomes = append(res.Outcomes, model.EnrichmentOutcome{
				PlaceID: c.PlaceID,
				Status:  model.EnrichmentEnriched,
				Result:  &r,
			})
		}

		if opts.OnProgress != nil {
			opts.OnProgress(Progress{
				Processed: res.Attempted,
				Total:     total,
				Percent:   float64(res.Attempted) / float64(total) * 100,
			})
		}
	}

	log.Info("enrichment batch complete",
		zap.Int("attempted", res.Attempted),
		zap.Int("enriched", res.Enriched),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

type attemptResult struct {
	result  model.EnrichmentResult
	err     error
	waitErr error
}

// attempt takes the single slot, waits on the limiter and makes one call.
// A waitErr means the call was never made.
func (w *Worker) attempt(ctx context.Context, c model.Candidate) attemptResult {
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return attemptResult{waitErr: err}
	}
	defer w.sem.Release(1)

	if err := w.limiter.Wait(ctx); err != nil {
		return attemptResult{waitErr: err}
	}

	result, err := w.call(ctx, c)
	return attemptResult{result: result, err: err}
}

func (w *Worker) call(ctx context.Context, c model.Candidate) (model.EnrichmentResult, error) {
	fn := func(ctx context.Context) (*enrichment.Response, error) {
		return w.client.Enrich(ctx, c.PlaceID)
	}

	var (
		resp *enrichment.Response
		err  error
	)
	if w.breaker != nil {
		resp, err = resilience.ExecuteVal(ctx, w.breaker, fn)
	} else {
		resp, err = fn(ctx)
	}
	if err != nil {
		return model.EnrichmentResult{}, eris.Wrapf(err, "enrich: %s", c.PlaceID)
	}
	if bare(c) && (resp == nil || resp.Score == nil || math.IsNaN(*resp.Score)) {
		return model.EnrichmentResult{}, eris.Wrapf(ErrNoScore, "enrich: %s", c.PlaceID)
	}

	out := w.engine.Normalize(c, resp)
	out.EnrichedAt = w.now().UTC()
	return out, nil
}

// bare reports whether c has nothing but a place id.
func bare(c model.Candidate) bool {
	return c.Name == "" && c.Website == "" && c.Phone == "" && c.Rating == 0 && c.ReviewCount == 0
}
