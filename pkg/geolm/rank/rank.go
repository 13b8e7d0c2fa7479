// Package rank orders candidate models by how well they match a document
// model.
package rank

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cognicore/geolm/pkg/geolm/internalerr"
	"github.com/cognicore/geolm/pkg/geolm/langmodel"
)

// Metric selects how a candidate is scored against a document.
type Metric string

const (
	// MetricKL scores D(doc || candidate); lower is better.
	MetricKL Metric = "kl"
	// MetricCosine is the cosine of smoothed distributions.
	MetricCosine Metric = "cosine"
	// MetricCosineUnsmoothed is the cosine of raw relative frequencies.
	MetricCosineUnsmoothed Metric = "cosine-unsmoothed"
	// MetricNaiveBayes is the log-likelihood of the document under the candidate.
	MetricNaiveBayes Metric = "naive-bayes"
)

// ParseMetric validates a metric name. Empty selects KL.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case "":
		return MetricKL, nil
	case MetricKL, MetricCosine, MetricCosineUnsmoothed, MetricNaiveBayes:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown metric %q", internalerr.ErrInvalidInput, s)
}

// LowerIsBetter reports the metric's direction.
func (m Metric) LowerIsBetter() bool { return m == MetricKL }

// Candidate is a named model to rank.
type Candidate struct {
	ID    string
	Model *langmodel.Model
}

// Result is a candidate's score.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	// Contributions explains the best result when Ranker.Explain is set.
	Contributions []langmodel.Contribution `json:"contributions,omitempty"`
}

// Ranker scores candidates concurrently.
type Ranker struct {
	Metric  Metric
	KLMode  langmodel.KLMode
	Partial bool
	// Workers bounds concurrent scoring; 0 uses GOMAXPROCS.
	Workers int
	// Explain attaches up to this many contributing grams to the best result.
	Explain int
	Logger  *zap.Logger
}

// Score scores one candidate. cache, when non-nil, must be a cache of doc.
func (r *Ranker) Score(doc, candidate *langmodel.Model, cache *langmodel.Cache) float64 {
	switch r.Metric {
	case MetricCosine:
		return langmodel.CosineSimilarity(doc, candidate, r.Partial, true)
	case MetricCosineUnsmoothed:
		return langmodel.CosineSimilarity(doc, candidate, r.Partial, false)
	case MetricNaiveBayes:
		return langmodel.ModelLogProb(candidate, doc)
	default:
		return langmodel.KLDivergence(doc, candidate, r.Partial, r.KLMode, cache)
	}
}

// Rank scores every candidate against doc and returns results best first.
// Ties are broken by id. Both doc and the candidates must be globally
// finished models of the same run.
func (r *Ranker) Rank(ctx context.Context, doc *langmodel.Model, candidates []Candidate) ([]Result, error) {
	metric, err := ParseMetric(string(r.Metric))
	if err != nil {
		return nil, err
	}
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var cache *langmodel.Cache
	if metric == MetricKL && r.KLMode != langmodel.KLSlow {
		cache = langmodel.NewCache(doc)
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	scorer := *r
	scorer.Metric = metric

	results := make([]Result, len(candidates))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				c := candidates[i]
				results[i] = Result{ID: c.ID, Score: scorer.Score(doc, c.Model, cache)}
			}
		}()
	}

	var cancelled error
feed:
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			cancelled = err
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	if cancelled != nil {
		return nil, cancelled
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			if metric.LowerIsBetter() {
				return a.Score < b.Score
			}
			return a.Score > b.Score
		}
		return a.ID < b.ID
	})

	if r.Explain > 0 && len(results) > 0 {
		best := candidateByID(candidates, results[0].ID)
		results[0].Contributions = scorer.explain(doc, best, candidates)
	}

	logger.Debug("ranked candidates",
		zap.String("metric", string(metric)),
		zap.Int("candidates", len(candidates)),
		zap.Int("workers", workers))
	return results, nil
}

func candidateByID(candidates []Candidate, id string) *langmodel.Model {
	for _, c := range candidates {
		if c.ID == id {
			return c.Model
		}
	}
	return nil
}

// explain lists the grams driving best's score.
func (r *Ranker) explain(doc, best *langmodel.Model, candidates []Candidate) []langmodel.Contribution {
	if r.Metric == MetricNaiveBayes {
		alts := make([]*langmodel.Model, 0, len(candidates)-1)
		for _, c := range candidates {
			if c.Model != best {
				alts = append(alts, c.Model)
			}
		}
		return langmodel.MostContributingGrams(best, doc, alts, r.Explain)
	}
	return langmodel.KLContributions(doc, best, r.Partial, r.Explain)
}
