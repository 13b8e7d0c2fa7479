// Package geolm ties the pieces of a language-model run together: one
// interning table, one set of global statistics and the models built
// against them.
package geolm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cognicore/geolm/pkg/geolm/aggregate"
	"github.com/cognicore/geolm/pkg/geolm/builder"
	"github.com/cognicore/geolm/pkg/geolm/config"
	"github.com/cognicore/geolm/pkg/geolm/corpus"
	"github.com/cognicore/geolm/pkg/geolm/gram"
	"github.com/cognicore/geolm/pkg/geolm/internalerr"
	"github.com/cognicore/geolm/pkg/geolm/langmodel"
	"github.com/cognicore/geolm/pkg/geolm/rank"
)

// Options configures a Run
type Options struct {
	Builder builder.Options
	TFIDF   bool
	Logger  *zap.Logger
}

// OptionsFromConfig converts loaded configuration into run options.
func OptionsFromConfig(comp *config.Components, logger *zap.Logger) Options {
	return Options{
		Builder: comp.BuilderOptions(logger),
		TFIDF:   comp.TFIDF,
		Logger:  logger,
	}
}

// Entry is a model registered with a run.
type Entry struct {
	ID    string
	Label string
	Model *langmodel.Model
}

// Run owns every model of one experiment. Training models are added first,
// then Finish fixes global statistics and finishes each model, after which
// the models answer queries.
type Run struct {
	mu       sync.Mutex
	table    *gram.Table
	agg      *aggregate.Aggregator
	builder  *builder.Builder
	training []Entry
	test     []Entry
	byID     map[string]Entry
	finished bool
	logger   *zap.Logger
}

// New creates an empty run
func New(opts Options) *Run {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Builder.Logger == nil {
		opts.Builder.Logger = logger
	}

	table := gram.NewTable()
	agg := aggregate.New(aggregate.Options{TFIDF: opts.TFIDF, Logger: logger})
	return &Run{
		table:   table,
		agg:     agg,
		builder: builder.New(table, agg, opts.Builder),
		byID:    make(map[string]Entry),
		logger:  logger.With(zap.String("run", agg.ID().String())),
	}
}

func (r *Run) add(id, label, counts string, training bool) (*langmodel.Model, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return nil, fmt.Errorf("%w: cannot add %q", internalerr.ErrFinished, id)
	}
	if _, dup := r.byID[id]; dup {
		return nil, fmt.Errorf("%w: model %q", internalerr.ErrDuplicate, id)
	}

	m, err := r.builder.Build(counts, training)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", id, err)
	}

	e := Entry{ID: id, Label: label, Model: m}
	r.byID[id] = e
	if training {
		r.training = append(r.training, e)
	} else {
		r.test = append(r.test, e)
	}
	return m, nil
}

// AddTraining builds a model whose counts join the global statistics.
func (r *Run) AddTraining(id, counts string) (*langmodel.Model, error) {
	return r.add(id, "", counts, true)
}

// AddTest builds a model that is compared against training models but does
// not contribute to global statistics.
func (r *Run) AddTest(id, counts string) (*langmodel.Model, error) {
	return r.add(id, "", counts, false)
}

// AddRecord adds a corpus record according to its split.
func (r *Run) AddRecord(rec corpus.Record) (*langmodel.Model, error) {
	return r.add(rec.ID, rec.Label, rec.Counts, rec.Training())
}

// Load adds every record of src. Records whose counts are malformed, list a
// gram twice, filter down to nothing or reuse an id are skipped with a
// warning; other errors abort.
func (r *Run) Load(ctx context.Context, src corpus.Source) (loaded, skipped int, err error) {
	records, err := src.Records(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("read records: %w", err)
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return loaded, skipped, err
		}
		if _, err := r.AddRecord(rec); err != nil {
			if errors.Is(err, internalerr.ErrEmptyModel) ||
				errors.Is(err, internalerr.ErrInvalidInput) ||
				errors.Is(err, internalerr.ErrDuplicate) {
				r.logger.Warn("skipping record", zap.String("id", rec.ID), zap.Error(err))
				skipped++
				continue
			}
			return loaded, skipped, err
		}
		loaded++
	}

	r.logger.Info("records loaded",
		zap.Int("loaded", loaded),
		zap.Int("skipped", skipped),
		zap.Int("training", len(r.training)),
		zap.Int("test", len(r.test)))
	return loaded, skipped, nil
}

// Finish fixes global statistics and globally finishes every model.
func (r *Run) Finish() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return internalerr.ErrFinished
	}
	r.finished = true

	r.agg.Finish()
	for _, e := range r.training {
		e.Model.FinishGlobal()
	}
	for _, e := range r.test {
		e.Model.FinishGlobal()
	}

	r.logger.Info("run finished",
		zap.Int("training", len(r.training)),
		zap.Int("test", len(r.test)),
		zap.Int("vocabulary", r.agg.VocabSize()))
	return nil
}

// Finished reports whether Finish has run.
func (r *Run) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

// Model returns the model registered under id.
func (r *Run) Model(id string) (*langmodel.Model, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	return e.Model, ok
}

// Entry returns the entry registered under id.
func (r *Run) Entry(id string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	return e, ok
}

// Training returns the training entries in insertion order.
func (r *Run) Training() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.training...)
}

// Test returns the test entries in insertion order.
func (r *Run) Test() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), r.test...)
}

// Candidates returns the training models as ranking candidates.
func (r *Run) Candidates() []rank.Candidate {
	training := r.Training()
	out := make([]rank.Candidate, len(training))
	for i, e := range training {
		out[i] = rank.Candidate{ID: e.ID, Model: e.Model}
	}
	return out
}

// Table returns the run's interning table.
func (r *Run) Table() *gram.Table { return r.table }

// Aggregator returns the run's global statistics.
func (r *Run) Aggregator() *aggregate.Aggregator { return r.agg }

// Builder returns the run's model builder.
func (r *Run) Builder() *builder.Builder { return r.builder }
