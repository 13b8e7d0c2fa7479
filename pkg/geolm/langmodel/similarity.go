package langmodel

import (
	"math"

	"github.com/cognicore/geolm/pkg/geolm/gram"
)

// CosineSimilarity computes sum(p*q) / (sqrt(sum(p^2)) * sqrt(sum(q^2))) over
// self's grams (partial) or the union of both models' grams. Smoothed uses the
// model probabilities; otherwise the raw relative frequencies count/tokens.
// It returns 0 when either vector is zero.
func CosineSimilarity(self, other *Model, partial, smoothed bool) float64 {
	self.mustQuery("CosineSimilarity")
	other.mustQuery("CosineSimilarity")
	mustShareRun(self, other)

	weight := func(m *Model, g gram.Gram) float64 {
		if smoothed {
			return m.prob(g)
		}
		return m.counts.Get(g) / m.numTokens
	}

	var dot, selfNorm, otherNorm float64
	accumulate := func(g gram.Gram) {
		p := weight(self, g)
		q := weight(other, g)
		dot += p * q
		selfNorm += p * p
		otherNorm += q * q
	}

	self.counts.Each(func(g gram.Gram, _ float64) {
		accumulate(g)
	})
	if !partial {
		other.counts.Each(func(g gram.Gram, _ float64) {
			if !self.counts.Contains(g) {
				accumulate(g)
			}
		})
	}

	if selfNorm == 0 || otherNorm == 0 {
		return 0
	}
	return dot / (math.Sqrt(selfNorm) * math.Sqrt(otherNorm))
}

// ModelLogProb scores other under self as a Naive-Bayes log-likelihood:
// sum over other's grams of count(g) * self.LogProbability(g). When other was
// built with per-gram weights the sum is divided by other's total weighted
// count so documents of different weighted size stay comparable.
func ModelLogProb(self, other *Model) float64 {
	self.mustQuery("ModelLogProb")
	other.mustQuery("ModelLogProb")
	mustShareRun(self, other)

	total := 0.0
	other.counts.Each(func(g gram.Gram, c float64) {
		total += c * self.logProb(g)
	})
	if other.Weighted() {
		if n := other.counts.NumTokens(); n > 0 {
			total /= n
		}
	}
	return total
}

// MostContributingGrams explains a Naive-Bayes score of doc under self. With
// no alternatives each of doc's grams scores count(g) * self.LogProbability(g);
// otherwise it scores the signed difference between that and the same
// quantity under each alternative, keeping the difference of largest
// magnitude. Results are ordered by descending magnitude and truncated to n
// when n > 0.
func MostContributingGrams(self, doc *Model, alternatives []*Model, n int) []Contribution {
	self.mustQuery("MostContributingGrams")
	for _, alt := range alternatives {
		alt.mustQuery("MostContributingGrams")
	}

	out := make([]Contribution, 0, doc.counts.NumTypes())
	doc.counts.Each(func(g gram.Gram, c float64) {
		base := c * self.logProb(g)
		score := base
		if len(alternatives) > 0 {
			score = 0
			for _, alt := range alternatives {
				diff := base - c*alt.logProb(g)
				if math.Abs(diff) > math.Abs(score) {
					score = diff
				}
			}
		}
		out = append(out, Contribution{Gram: g, Text: self.text(g), Score: score})
	})

	sortContributions(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
