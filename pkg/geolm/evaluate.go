package geolm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cognicore/geolm/pkg/geolm/internalerr"
	"github.com/cognicore/geolm/pkg/geolm/rank"
)

// Ranking is the result of ranking the training models against one test
// model.
type Ranking struct {
	ID             string        `json:"id"`
	Label          string        `json:"label,omitempty"`
	Predicted      string        `json:"predicted"`
	PredictedLabel string        `json:"predicted_label,omitempty"`
	Results        []rank.Result `json:"results"`
}

// Correct reports whether the best candidate carries the test record's label.
func (rk Ranking) Correct() bool {
	return rk.Label != "" && rk.Label == rk.PredictedLabel
}

// RankTest ranks the training models against every test model, keeping the
// top results of each (all when top <= 0). The run must be finished.
func (r *Run) RankTest(ctx context.Context, ranker *rank.Ranker, top int) ([]Ranking, error) {
	if !r.Finished() {
		return nil, fmt.Errorf("%w: rank before Finish", internalerr.ErrInvalidInput)
	}

	candidates := r.Candidates()
	var out []Ranking
	for _, e := range r.Test() {
		results, err := ranker.Rank(ctx, e.Model, candidates)
		if err != nil {
			return nil, err
		}
		if top > 0 && len(results) > top {
			results = results[:top]
		}

		rk := Ranking{ID: e.ID, Label: e.Label, Results: results}
		if len(results) > 0 {
			rk.Predicted = results[0].ID
			if best, ok := r.Entry(rk.Predicted); ok {
				rk.PredictedLabel = best.Label
			}
		}
		out = append(out, rk)
	}

	if acc, n := Accuracy(out); n > 0 {
		r.logger.Info("ranking accuracy",
			zap.String("metric", string(ranker.Metric)),
			zap.Int("labelled", n),
			zap.Float64("accuracy", acc))
	}
	return out, nil
}

// Accuracy is the fraction of labelled rankings whose prediction is correct,
// along with the number of labelled rankings.
func Accuracy(rankings []Ranking) (float64, int) {
	labelled, correct := 0, 0
	for _, rk := range rankings {
		if rk.Label == "" {
			continue
		}
		labelled++
		if rk.Correct() {
			correct++
		}
	}
	if labelled == 0 {
		return 0, 0
	}
	return float64(correct) / float64(labelled), labelled
}
