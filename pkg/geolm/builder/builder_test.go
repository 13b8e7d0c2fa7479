package builder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/geolm/pkg/geolm/aggregate"
	"github.com/cognicore/geolm/pkg/geolm/counts"
	"github.com/cognicore/geolm/pkg/geolm/discount"
	"github.com/cognicore/geolm/pkg/geolm/gram"
	"github.com/cognicore/geolm/pkg/geolm/internalerr"
	"github.com/cognicore/geolm/pkg/geolm/langmodel"
	"github.com/cognicore/geolm/pkg/geolm/stoplist"
)

func newBuilder(opts Options) *Builder {
	if opts.Model.Strategy == (discount.Strategy{}) {
		opts.Model.Strategy = discount.Dirichlet(100)
		opts.Model.Interpolate = true
	}
	return New(gram.NewTable(), aggregate.New(aggregate.Options{}), opts)
}

func count(b *Builder, m *langmodel.Model, words ...string) float64 {
	return m.Counts().Get(b.Table().InternWords(words))
}

func TestParseCounts(t *testing.T) {
	raw, err := ParseCounts("paris:3 texas:1.5  new%20york:2\tsan:francisco:4")
	require.NoError(t, err)
	require.Len(t, raw, 4)

	assert.Equal(t, []string{"paris"}, raw[0].Words)
	assert.Equal(t, 3.0, raw[0].Count)
	assert.Equal(t, 1.5, raw[1].Count)
	assert.Equal(t, []string{"new york"}, raw[2].Words)
	assert.Equal(t, []string{"san", "francisco"}, raw[3].Words)
	assert.Equal(t, 4.0, raw[3].Count)
}

func TestParseCountsEmpty(t *testing.T) {
	raw, err := ParseCounts("   ")
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestParseCountsMalformed(t *testing.T) {
	bad := []string{
		"paris",       // no count
		":3",          // empty token
		"paris:",      // empty count
		"paris:x",     // not a number
		"paris:-1",    // negative
		"paris:NaN",   // not finite
		"paris:+Inf",  // not finite
		"a::2",        // empty word in n-gram
		"bad%zz:1",    // bad escape
		"ok:1 broken", // one bad entry spoils the record
	}
	for _, s := range bad {
		_, err := ParseCounts(s)
		assert.Error(t, err, s)
		assert.True(t, errors.Is(err, internalerr.ErrMalformedCounts), s)
		assert.True(t, errors.Is(err, internalerr.ErrInvalidInput), s)
	}
}

func TestParseCountsDuplicate(t *testing.T) {
	_, err := ParseCounts("paris:1 texas:2 paris:3")
	assert.True(t, errors.Is(err, internalerr.ErrDuplicate))
	assert.True(t, errors.Is(err, internalerr.ErrMalformedCounts))
	assert.True(t, errors.Is(err, internalerr.ErrInvalidInput))

	// escapes are normalized before comparing
	_, err = ParseCounts("a%3ab:1 a%3Ab:1")
	assert.True(t, errors.Is(err, internalerr.ErrDuplicate))
}

func TestEncodeRoundTrip(t *testing.T) {
	in := "zurich:2 new%20york:7 paris:1 a%3Ab:3 san:jose:4"
	raw, err := ParseCounts(in)
	require.NoError(t, err)

	table := gram.NewTable()
	c := counts.New()
	for _, rc := range raw {
		c.Add(table.InternWords(rc.Words), rc.Count)
	}

	out := EncodeCounts(table, c)
	again, err := ParseCounts(out)
	require.NoError(t, err)

	multiset := func(rcs []RawCount) map[string]float64 {
		m := map[string]float64{}
		for _, rc := range rcs {
			m[gram.EncodeWords(rc.Words)] += rc.Count
		}
		return m
	}
	assert.Equal(t, multiset(raw), multiset(again))
	assert.Equal(t, "a%3Ab:3 new%20york:7 paris:1 san:jose:4 zurich:2", out)
}

func TestEncodeWordCounts(t *testing.T) {
	s := EncodeWordCounts(map[string]float64{"b": 2, "a:x": 1, "c": 0.5})
	assert.Equal(t, "a%3Ax:1 b:2 c:0.5", s)
}

func TestBuildCaseFoldingMergesCounts(t *testing.T) {
	b := newBuilder(Options{IgnoreCase: true})
	m, err := b.Build("Paris:2 paris:1 TEXAS:4", true)
	require.NoError(t, err)

	assert.Equal(t, 3.0, count(b, m, "paris"))
	assert.Equal(t, 4.0, count(b, m, "texas"))
	assert.Equal(t, langmodel.LocallyFinished, m.State())
	assert.Equal(t, int64(1), b.Aggregator().NumDocuments())
}

func TestBuildKeepsCaseByDefault(t *testing.T) {
	b := newBuilder(Options{})
	m, err := b.Build("Paris:2 paris:1", false)
	require.NoError(t, err)

	assert.Equal(t, 2, m.NumTypes())
	assert.Equal(t, int64(0), b.Aggregator().NumDocuments())
}

func TestBuildStoplistAndWhitelist(t *testing.T) {
	b := newBuilder(Options{
		IgnoreCase: true,
		Stoplist:   stoplist.NewManager([]string{"The"}),
		Whitelist:  []string{"paris", "the", "Seine"},
	})
	m, err := b.Build("the:5 Paris:2 seine:1 louvre:3", true)
	require.NoError(t, err)

	assert.Equal(t, 2, m.NumTypes())
	assert.Equal(t, 2.0, count(b, m, "paris"))
	assert.Equal(t, 1.0, count(b, m, "seine"))
	assert.Equal(t, 0.0, count(b, m, "the"))
	assert.Equal(t, 0.0, count(b, m, "louvre"))
}

func TestBuildMinCountCollapsesToOOV(t *testing.T) {
	b := newBuilder(Options{Model: langmodel.Options{Strategy: discount.PseudoGoodTuring(), MinCount: 2}})
	m, err := b.Build("paris:5 lyon:1 nice:1 texas:2", true)
	require.NoError(t, err)

	assert.Equal(t, 3, m.NumTypes())
	assert.Equal(t, 2.0, count(b, m, gram.OOV))
	assert.Equal(t, 9.0, m.NumTokens())
}

func TestBuildWeights(t *testing.T) {
	b := newBuilder(Options{
		IgnoreCase:    true,
		Weights:       map[string]float64{"The": 0, "paris": 2, "new york": 0.5},
		DefaultWeight: 1,
	})
	m, err := b.Build("the:10 paris:3 new:york:4 lyon:1", true)
	require.NoError(t, err)

	assert.Equal(t, 0.0, count(b, m, "the"))
	assert.Equal(t, 6.0, count(b, m, "paris"))
	assert.Equal(t, 2.0, count(b, m, "new", "york"))
	assert.Equal(t, 1.0, count(b, m, "lyon"))
	assert.True(t, m.Weighted())
}

func TestBuildEmptyAfterFiltering(t *testing.T) {
	b := newBuilder(Options{Stoplist: stoplist.NewManager([]string{"the", "a"})})
	_, err := b.Build("the:3 a:1", true)
	assert.True(t, errors.Is(err, internalerr.ErrEmptyModel))
	assert.Equal(t, int64(0), b.Aggregator().NumDocuments())
}

func TestBuildRejectsMalformed(t *testing.T) {
	b := newBuilder(Options{})
	_, err := b.Build("paris:1 paris:2", true)
	assert.True(t, errors.Is(err, internalerr.ErrDuplicate))
}

func TestBuildFromWordsNgrams(t *testing.T) {
	b := newBuilder(Options{
		Model:      langmodel.Options{Strategy: discount.JelinekMercer(0.1), Interpolate: true, Order: 2},
		IgnoreCase: true,
		Stoplist:   stoplist.NewManager([]string{"in"}),
	})
	m, err := b.BuildFromWords([]string{"Lives", "in", "New", "York", "", "new", "york"}, true)
	require.NoError(t, err)

	// after filtering: lives new york new york
	assert.Equal(t, 2.0, count(b, m, "new", "york"))
	assert.Equal(t, 1.0, count(b, m, "lives", "new"))
	assert.Equal(t, 1.0, count(b, m, "york", "new"))
	assert.Equal(t, 4.0, m.NumTokens())
}

func TestBuiltModelsAnswerQueries(t *testing.T) {
	b := newBuilder(Options{Model: langmodel.Options{Strategy: discount.JelinekMercer(0.2), Interpolate: true}})
	d1, err := b.Build("the:1 cat:1 sat:1", true)
	require.NoError(t, err)
	d2, err := b.Build("the:1 dog:1 ran:1", true)
	require.NoError(t, err)

	b.Aggregator().Finish()
	d1.FinishGlobal()
	d2.FinishGlobal()

	the := b.Table().InternWords([]string{"the"})
	assert.InDelta(t, 1.0/3.0, d1.Probability(the), 1e-12)
	assert.Contains(t, b.String(), "jelinek-mercer(0.2)")
}
