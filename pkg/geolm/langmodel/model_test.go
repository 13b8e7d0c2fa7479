package langmodel

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/geolm/pkg/geolm/aggregate"
	"github.com/cognicore/geolm/pkg/geolm/discount"
	"github.com/cognicore/geolm/pkg/geolm/gram"
	"github.com/cognicore/geolm/pkg/geolm/internalerr"
)

type fixture struct {
	table  *gram.Table
	agg    *aggregate.Aggregator
	models []*Model
}

func newFixture(tfidf bool) *fixture {
	return &fixture{
		table: gram.NewTable(),
		agg:   aggregate.New(aggregate.Options{TFIDF: tfidf}),
	}
}

func (f *fixture) build(t *testing.T, opts Options, text string) *Model {
	t.Helper()
	m := New(f.agg, f.table, opts)
	m.AddDocument(strings.Fields(text))
	require.NoError(t, m.FinishLocal())
	f.models = append(f.models, m)
	return m
}

func (f *fixture) finish() {
	f.agg.Finish()
	for _, m := range f.models {
		m.FinishGlobal()
	}
}

func (f *fixture) g(word string) gram.Gram {
	return f.table.InternWords([]string{word})
}

func training(s discount.Strategy, interpolate bool) Options {
	return Options{Strategy: s, Interpolate: interpolate, NoteGlobally: true}
}

func TestTwoDocumentJelinekMercer(t *testing.T) {
	f := newFixture(false)
	opts := training(discount.JelinekMercer(0.2), true)
	d1 := f.build(t, opts, "the cat sat")
	f.build(t, opts, "the dog ran")
	f.finish()

	globalThe := f.agg.OverallProb(f.g("the"))
	for _, w := range []string{"cat", "sat", "dog", "ran"} {
		assert.Greater(t, globalThe, f.agg.OverallProb(f.g(w)), w)
	}

	// "the" has the same MLE (1/3) in d1 as globally, so interpolation keeps it there.
	assert.InDelta(t, 1.0/3.0, d1.Probability(f.g("the")), 1e-12)

	// "cat" is pulled strictly between its MLE and its global probability.
	mle := 1.0 / 3.0
	global := f.agg.OverallProb(f.g("cat"))
	p := d1.Probability(f.g("cat"))
	assert.Greater(t, p, global)
	assert.Less(t, p, mle)
	assert.InDelta(t, mle*0.8+global*0.2, p, 1e-12)

	// "dog" is unseen in d1 and gets only the reserved share of its global mass.
	assert.InDelta(t, 0.2*global, d1.Probability(f.g("dog")), 1e-12)
}

func TestBackoffLookup(t *testing.T) {
	f := newFixture(false)
	opts := training(discount.JelinekMercer(0.2), false)
	d1 := f.build(t, opts, "the cat sat")
	f.build(t, opts, "the dog ran")
	f.finish()

	// global mass outside d1: dog + ran
	assert.InDelta(t, 1.0/3.0, d1.OverallUnseenMass(), 1e-12)
	assert.InDelta(t, 1.0/3.0*0.8, d1.Probability(f.g("the")), 1e-12)
	assert.InDelta(t, 0.2*(1.0/6.0)/(1.0/3.0), d1.Probability(f.g("dog")), 1e-12)

	never := f.table.InternWords([]string{"zebra"})
	assert.Equal(t, 0.0, d1.Probability(never))
	assert.Equal(t, 0.0, d1.LogProbability(never))
	assert.InDelta(t, math.Log(1.0/3.0*0.8), d1.LogProbability(f.g("the")), 1e-12)
}

func TestDirichletUnseenMass(t *testing.T) {
	f := newFixture(false)
	opts := training(discount.Dirichlet(100), true)
	short := f.build(t, opts, "a b c")

	long := New(f.agg, f.table, opts)
	long.AddGram(f.g("a"), 6000)
	long.AddGram(f.g("b"), 4000)
	require.NoError(t, long.FinishLocal())
	f.models = append(f.models, long)
	f.finish()

	assert.InDelta(t, 100.0/103.0, short.UnseenMass(), 1e-12)
	assert.InDelta(t, 0.9709, short.UnseenMass(), 1e-4)
	assert.InDelta(t, 100.0/10100.0, long.UnseenMass(), 1e-12)
	assert.InDelta(t, 0.0099, long.UnseenMass(), 1e-4)
}

func TestPseudoGoodTuringAllSingletons(t *testing.T) {
	f := newFixture(false)
	m := f.build(t, training(discount.PseudoGoodTuring(), false), "one two three four five")
	f.build(t, training(discount.PseudoGoodTuring(), false), "six six seven")
	f.finish()

	assert.Equal(t, m.NumTypes(), int(m.NumTokens()))
	assert.Equal(t, 0.5, m.UnseenMass())
}

func TestLifecycleViolationsPanic(t *testing.T) {
	f := newFixture(false)
	m := New(f.agg, f.table, training(discount.JelinekMercer(0.1), true))
	m.AddDocument([]string{"x", "y"})

	assert.Panics(t, func() { m.Probability(f.g("x")) }, "query while building")
	assert.Panics(t, func() { m.FinishGlobal() }, "global before local")

	require.NoError(t, m.FinishLocal())
	assert.Equal(t, LocallyFinished, m.State())
	assert.Panics(t, func() { m.AddGram(f.g("z"), 1) }, "mutation after local finish")
	assert.Panics(t, func() { m.AddDocument([]string{"z"}) })
	assert.Panics(t, func() { _ = m.FinishLocal() })
	assert.Panics(t, func() { m.FinishGlobal() }, "global before aggregator finish")
	assert.Panics(t, func() { m.Probability(f.g("x")) }, "query before global finish")

	f.agg.Finish()
	m.FinishGlobal()
	assert.Equal(t, GloballyFinished, m.State())
	assert.Panics(t, func() { m.FinishGlobal() })
	assert.NotPanics(t, func() { m.Probability(f.g("x")) })
}

func TestEmptyModelRejected(t *testing.T) {
	f := newFixture(false)
	m := New(f.agg, f.table, training(discount.JelinekMercer(0.1), true))
	err := m.FinishLocal()
	assert.True(t, errors.Is(err, internalerr.ErrEmptyModel))
	assert.Equal(t, Building, m.State())
	assert.Equal(t, int64(0), f.agg.NumDocuments())
}

func TestTestModelsAreNotNoted(t *testing.T) {
	f := newFixture(false)
	f.build(t, training(discount.JelinekMercer(0.1), true), "a b")
	test := f.build(t, Options{Strategy: discount.JelinekMercer(0.1), Interpolate: true}, "a zebra")
	f.finish()

	assert.Equal(t, int64(1), f.agg.NumDocuments())
	assert.Equal(t, 0.0, f.agg.OverallProb(f.g("zebra")))
	assert.InDelta(t, 0.5*0.9, test.Probability(f.g("zebra")), 1e-12)
}

func TestCollapseRareIsIdempotent(t *testing.T) {
	f := newFixture(false)
	opts := training(discount.PseudoGoodTuring(), false)
	opts.MinCount = 2
	m := f.build(t, opts, "a a a b b c d e")

	oov := f.g(gram.OOV)
	assert.Equal(t, 3, m.NumTypes())
	assert.Equal(t, 3.0, m.Counts().Get(oov))
	assert.Equal(t, 8.0, m.NumTokens())

	types := m.NumTypes()
	clone := m.Counts().Clone()
	CollapseRare(clone, 2, oov)
	assert.Equal(t, types, clone.NumTypes())

	// an OOV bucket below the threshold is left alone too
	again := New(f.agg, f.table, Options{Strategy: discount.PseudoGoodTuring(), MinCount: 5})
	again.AddModel(m, 1)
	require.NoError(t, again.FinishLocal())
	before := again.NumTypes()
	CollapseRare(again.Counts(), 5, oov)
	assert.Equal(t, before, again.NumTypes())
}

func TestWeights(t *testing.T) {
	f := newFixture(false)
	opts := training(discount.JelinekMercer(0.1), true)
	opts.Weights = map[gram.Gram]float64{f.g("drop"): 0, f.g("half"): 0.5}
	opts.DefaultWeight = 2
	m := f.build(t, opts, "drop half half other")

	assert.False(t, m.Counts().Contains(f.g("drop")))
	assert.Equal(t, 1.0, m.Counts().Get(f.g("half")))
	assert.Equal(t, 2.0, m.Counts().Get(f.g("other")))
	assert.Equal(t, 3.0, m.NumTokens())
	assert.True(t, m.Weighted())
}

func TestAllZeroWeightsEmptyModel(t *testing.T) {
	f := newFixture(false)
	opts := training(discount.JelinekMercer(0.1), true)
	opts.Weights = map[gram.Gram]float64{}
	opts.DefaultWeight = 0
	m := New(f.agg, f.table, opts)
	m.AddDocument([]string{"a", "b"})
	assert.ErrorIs(t, m.FinishLocal(), internalerr.ErrEmptyModel)
}

func TestAddModelScalesCounts(t *testing.T) {
	f := newFixture(false)
	a := f.build(t, training(discount.JelinekMercer(0.1), true), "x x y")

	combined := New(f.agg, f.table, Options{Strategy: discount.JelinekMercer(0.1)})
	combined.AddModel(a, 0.5)
	combined.AddModel(a, 2)
	assert.Equal(t, 5.0, combined.Counts().Get(f.g("x")))
	assert.Equal(t, 2.5, combined.Counts().Get(f.g("y")))
	assert.Panics(t, func() { combined.AddModel(a, 0) })
}

func TestNgramDocument(t *testing.T) {
	f := newFixture(false)
	opts := training(discount.JelinekMercer(0.1), true)
	opts.Order = 2
	m := f.build(t, opts, "new york new york city")

	ny := f.table.InternWords([]string{"new", "york"})
	assert.Equal(t, 2.0, m.Counts().Get(ny))
	assert.Equal(t, 4, int(m.NumTokens()))
	assert.Equal(t, 3, m.NumTypes())
}

func TestTopGramsAndString(t *testing.T) {
	f := newFixture(false)
	m := f.build(t, training(discount.Dirichlet(10), true), "b a a c c c")
	f.finish()

	top := m.TopGrams(2)
	require.Len(t, top, 2)
	assert.Equal(t, "c", top[0].Text)
	assert.Equal(t, "a", top[1].Text)

	s := m.String()
	assert.Contains(t, s, "globally-finished")
	assert.Contains(t, s, "dirichlet(10)")
	assert.Contains(t, s, "c=3 a=2 b=1")
}

// randomCorpus builds training and test models over a shared vocabulary with
// overlapping and disjoint grams.
func randomCorpus(t *testing.T, s discount.Strategy, interpolate, tfidf bool) (*fixture, []*Model) {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	vocab := make([]string, 40)
	for i := range vocab {
		vocab[i] = "w" + strings.Repeat("x", i%5) + string(rune('a'+i%26))
	}

	f := newFixture(tfidf)
	var models []*Model
	for d := 0; d < 10; d++ {
		opts := Options{Strategy: s, Interpolate: interpolate, NoteGlobally: d < 7}
		m := New(f.agg, f.table, opts)
		n := 5 + rng.Intn(30)
		for i := 0; i < n; i++ {
			// test documents reach past the training vocabulary
			limit := 30
			if d >= 7 {
				limit = len(vocab)
			}
			m.AddGram(f.g(vocab[rng.Intn(limit)]), float64(1+rng.Intn(3)))
		}
		require.NoError(t, m.FinishLocal())
		f.models = append(f.models, m)
		models = append(models, m)
	}
	f.finish()
	return f, models
}

type combo struct {
	name        string
	strategy    discount.Strategy
	interpolate bool
	tfidf       bool
}

var combos = []combo{
	{"jm-interp", discount.JelinekMercer(0.3), true, false},
	{"jm-backoff", discount.JelinekMercer(0.3), false, false},
	{"dirichlet-interp", discount.Dirichlet(50), true, false},
	{"dirichlet-backoff-tfidf", discount.Dirichlet(50), false, true},
	{"pgt-backoff", discount.PseudoGoodTuring(), false, false},
	{"pgt-interp-tfidf", discount.PseudoGoodTuring(), true, true},
}

func TestNormalization(t *testing.T) {
	for _, c := range combos {
		t.Run(c.name, func(t *testing.T) {
			f, models := randomCorpus(t, c.strategy, c.interpolate, c.tfidf)
			for _, m := range models {
				u := m.UnseenMass()
				require.GreaterOrEqual(t, u, 0.0)
				require.LessOrEqual(t, u, 1.0)

				visited := map[gram.Gram]bool{}
				sum := 0.0
				visit := func(g gram.Gram) {
					if visited[g] {
						return
					}
					visited[g] = true
					p := m.Probability(g)
					require.GreaterOrEqual(t, p, 0.0)
					require.LessOrEqual(t, p, 1.0)
					sum += p
				}
				m.Counts().Each(func(g gram.Gram, _ float64) { visit(g) })
				f.agg.EachOverall(func(g gram.Gram, _ float64) { visit(g) })

				if !c.interpolate && m.OverallUnseenMass() == 0 {
					// back-off with no global grams outside the model leaves the
					// reserved mass unassigned
					assert.InDelta(t, 1-u, sum, 1e-9)
					continue
				}
				assert.InDelta(t, 1.0, sum, 1e-9)
			}
		})
	}
}
