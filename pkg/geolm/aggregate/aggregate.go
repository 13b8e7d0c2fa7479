// Package aggregate accumulates corpus-wide statistics from every model that
// takes part in global smoothing and derives the global (backoff)
// distribution once all of them are built.
package aggregate

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/cognicore/geolm/pkg/geolm/counts"
	"github.com/cognicore/geolm/pkg/geolm/gram"
)

// Phase is the aggregator lifecycle stage.
type Phase int

const (
	// Accumulating accepts counts from locally finished models.
	Accumulating Phase = iota
	// Finished has frozen the global distribution; it is read-only.
	Finished
)

func (p Phase) String() string {
	switch p {
	case Accumulating:
		return "accumulating"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Options configures an Aggregator.
type Options struct {
	// TFIDF reweights global counts by count*log(N/df) before normalizing.
	TFIDF  bool
	Logger *zap.Logger
}

// Aggregator holds the per-run global statistics.
type Aggregator struct {
	mu       sync.Mutex
	finished atomic.Bool

	id     ulid.ULID
	tfidf  bool
	logger *zap.Logger

	globalCounts map[gram.Gram]float64
	docFreq      map[gram.Gram]int64
	numDocuments int64
	numTypes     int64   // summed over noted models
	numTokens    float64 // summed over noted models

	overall   map[gram.Gram]float64 // frozen after Finish
	totalMass float64
}

// New creates an aggregator in the Accumulating phase.
func New(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		id:           ulid.Make(),
		tfidf:        opts.TFIDF,
		logger:       logger,
		globalCounts: make(map[gram.Gram]float64),
		docFreq:      make(map[gram.Gram]int64),
	}
}

// ID identifies the run this aggregator belongs to.
func (a *Aggregator) ID() ulid.ULID {
	return a.id
}

// Phase returns the current lifecycle stage.
func (a *Aggregator) Phase() Phase {
	if a.finished.Load() {
		return Finished
	}
	return Accumulating
}

// Finished reports whether Finish has run.
func (a *Aggregator) Finished() bool {
	return a.finished.Load()
}

// Note folds one model's counts into the global statistics.
// It panics once the aggregator is finished.
func (a *Aggregator) Note(c *counts.Counts) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finished.Load() {
		panic("aggregate: Note called after global statistics were finished")
	}

	a.numDocuments++
	a.numTypes += int64(c.NumTypes())
	a.numTokens += c.NumTokens()
	c.Each(func(g gram.Gram, count float64) {
		a.globalCounts[g] += count
		a.docFreq[g]++
	})
}

// Finish computes the global distribution. It must run exactly once, after
// every contributing model has been noted; a second call panics.
func (a *Aggregator) Finish() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finished.Load() {
		panic("aggregate: Finish called twice")
	}

	overall := make(map[gram.Gram]float64, len(a.globalCounts))
	total := 0.0
	for g, count := range a.globalCounts {
		w := count
		if a.tfidf {
			w = count * math.Log(float64(a.numDocuments)/float64(a.docFreq[g]))
		}
		overall[g] = w
		total += w
	}

	if total > 0 {
		for g, w := range overall {
			overall[g] = w / total
		}
		a.totalMass = 1
	} else {
		// Nothing noted, or TF-IDF zeroed every gram (one document).
		for g := range overall {
			overall[g] = 0
		}
		a.totalMass = 0
		a.logger.Warn("global distribution has no mass",
			zap.String("run", a.id.String()),
			zap.Int64("documents", a.numDocuments),
			zap.Bool("tfidf", a.tfidf))
	}

	a.overall = overall
	a.finished.Store(true)

	a.logger.Info("global statistics finished",
		zap.String("run", a.id.String()),
		zap.Int64("documents", a.numDocuments),
		zap.Int("vocabulary", len(overall)),
		zap.Float64("tokens", a.numTokens),
		zap.Bool("tfidf", a.tfidf))
}

// OverallProb returns the global probability of g (0 if never noted).
// It panics before Finish.
func (a *Aggregator) OverallProb(g gram.Gram) float64 {
	if !a.finished.Load() {
		panic("aggregate: OverallProb called before Finish")
	}
	return a.overall[g]
}

// EachOverall calls fn for every gram in the global vocabulary.
func (a *Aggregator) EachOverall(fn func(g gram.Gram, p float64)) {
	if !a.finished.Load() {
		panic("aggregate: EachOverall called before Finish")
	}
	for g, p := range a.overall {
		fn(g, p)
	}
}

// TotalMass is the sum of all global probabilities: 1, or 0 when the global
// distribution is empty.
func (a *Aggregator) TotalMass() float64 {
	if !a.finished.Load() {
		panic("aggregate: TotalMass called before Finish")
	}
	return a.totalMass
}

// VocabSize returns the number of grams noted globally.
func (a *Aggregator) VocabSize() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.globalCounts)
}

// NumDocuments returns how many models were noted.
func (a *Aggregator) NumDocuments() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.numDocuments
}

// NumTypes returns the per-model type counts summed over noted models.
func (a *Aggregator) NumTypes() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.numTypes
}

// NumTokens returns the token mass summed over noted models.
func (a *Aggregator) NumTokens() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.numTokens
}

// DocFreq returns how many noted models contain g.
func (a *Aggregator) DocFreq(g gram.Gram) int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.docFreq[g]
}

// EachDocFreq calls fn with the document frequency of every noted gram.
func (a *Aggregator) EachDocFreq(fn func(g gram.Gram, df int64)) {
	a.mu.Lock()
	snapshot := make(map[gram.Gram]int64, len(a.docFreq))
	for g, df := range a.docFreq {
		snapshot[g] = df
	}
	a.mu.Unlock()

	for g, df := range snapshot {
		fn(g, df)
	}
}
