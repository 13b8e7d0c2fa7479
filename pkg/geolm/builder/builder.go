// Package builder turns encoded count strings and word sequences into locally
// finished language models, applying the run's vocabulary filters.
package builder

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cognicore/geolm/pkg/geolm/aggregate"
	"github.com/cognicore/geolm/pkg/geolm/gram"
	"github.com/cognicore/geolm/pkg/geolm/langmodel"
	"github.com/cognicore/geolm/pkg/geolm/stoplist"
)

// Options configures a Builder.
type Options struct {
	// Model carries the smoothing settings every built model shares.
	// NoteGlobally and Weights are set per build.
	Model langmodel.Options

	IgnoreCase bool
	Stoplist   *stoplist.Manager
	// Whitelist, when non-empty, keeps only the listed words.
	Whitelist []string
	// Weights rescales counts per gram text (n-gram words joined by spaces);
	// nil disables weighting. Grams not listed get DefaultWeight.
	Weights       map[string]float64
	DefaultWeight float64

	Logger *zap.Logger
}

// Builder creates models for one run.
type Builder struct {
	table     *gram.Table
	agg       *aggregate.Aggregator
	opts      Options
	stops     *stoplist.Manager
	whitelist map[string]struct{}
	weights   map[gram.Gram]float64
	logger    *zap.Logger
}

// New creates a builder that interns into table and registers training
// models with agg.
func New(table *gram.Table, agg *aggregate.Aggregator, opts Options) *Builder {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Builder{
		table:  table,
		agg:    agg,
		opts:   opts,
		stops:  opts.Stoplist,
		logger: logger,
	}
	if opts.IgnoreCase && b.stops != nil {
		b.stops = b.stops.Lowercased()
	}

	if len(opts.Whitelist) > 0 {
		b.whitelist = make(map[string]struct{}, len(opts.Whitelist))
		for _, w := range opts.Whitelist {
			b.whitelist[b.fold(w)] = struct{}{}
		}
	}

	if opts.Weights != nil {
		b.weights = make(map[gram.Gram]float64, len(opts.Weights))
		for text, w := range opts.Weights {
			b.weights[table.InternWords(strings.Fields(b.fold(text)))] = w
		}
	}
	return b
}

func (b *Builder) fold(w string) string {
	if b.opts.IgnoreCase {
		return strings.ToLower(w)
	}
	return w
}

// keepWord applies the stoplist and whitelist to an already folded word.
func (b *Builder) keepWord(w string) bool {
	if b.stops.IsStop(w) {
		return false
	}
	if b.whitelist != nil {
		if _, ok := b.whitelist[w]; !ok {
			return false
		}
	}
	return true
}

func (b *Builder) newModel(noteGlobally bool) *langmodel.Model {
	opts := b.opts.Model
	opts.NoteGlobally = noteGlobally
	opts.Weights = b.weights
	opts.DefaultWeight = b.opts.DefaultWeight
	return langmodel.New(b.agg, b.table, opts)
}

func (b *Builder) finish(m *langmodel.Model, kind string, rejected int) (*langmodel.Model, error) {
	if err := m.FinishLocal(); err != nil {
		b.logger.Debug("model rejected",
			zap.String("source", kind),
			zap.Int("rejected", rejected),
			zap.Error(err))
		return nil, err
	}
	b.logger.Debug("model built",
		zap.String("source", kind),
		zap.Int("types", m.NumTypes()),
		zap.Float64("tokens", m.NumTokens()),
		zap.Int("rejected", rejected))
	return m, nil
}

// Build parses a count string and returns a locally finished model. When
// noteGlobally is set the model's counts join the run's global statistics.
func (b *Builder) Build(countString string, noteGlobally bool) (*langmodel.Model, error) {
	raw, err := ParseCounts(countString)
	if err != nil {
		return nil, err
	}

	m := b.newModel(noteGlobally)
	rejected := 0
	for _, rc := range raw {
		words := make([]string, len(rc.Words))
		keep := true
		for i, w := range rc.Words {
			words[i] = b.fold(w)
			if !b.keepWord(words[i]) {
				keep = false
				break
			}
		}
		if !keep {
			rejected++
			continue
		}
		m.AddGram(b.table.InternWords(words), rc.Count)
	}
	return b.finish(m, "counts", rejected)
}

// BuildFromWords counts a word sequence (as unigrams or n-grams of the
// configured order) after filtering, and returns a locally finished model.
func (b *Builder) BuildFromWords(words []string, noteGlobally bool) (*langmodel.Model, error) {
	kept := make([]string, 0, len(words))
	for _, w := range words {
		w = b.fold(w)
		if w == "" || !b.keepWord(w) {
			continue
		}
		kept = append(kept, w)
	}

	m := b.newModel(noteGlobally)
	m.AddDocument(kept)
	return b.finish(m, "words", len(words)-len(kept))
}

// Table returns the interning table models are built against.
func (b *Builder) Table() *gram.Table { return b.table }

// Aggregator returns the run's global statistics.
func (b *Builder) Aggregator() *aggregate.Aggregator { return b.agg }

func (b *Builder) String() string {
	return fmt.Sprintf("Builder(%s, ignore-case=%v, stopwords=%d, whitelist=%d, weights=%d)",
		b.opts.Model.Strategy, b.opts.IgnoreCase, b.stops.Len(), len(b.whitelist), len(b.weights))
}
