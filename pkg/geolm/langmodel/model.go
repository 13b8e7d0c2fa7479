// Package langmodel implements smoothed word (or n-gram) distributions over
// text units and the divergence and similarity measures used to compare them.
//
// A Model moves through three states. While Building it accepts counts.
// FinishLocal applies local cleanup (rare-gram collapse, per-gram weights) and,
// for training models, registers the counts with the run's Aggregator.
// After the Aggregator has finished, FinishGlobal fixes the smoothing
// parameters; from then on the model is immutable and answers queries.
// Calling an operation in the wrong state is a programming error and panics.
package langmodel

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cognicore/geolm/pkg/geolm/aggregate"
	"github.com/cognicore/geolm/pkg/geolm/counts"
	"github.com/cognicore/geolm/pkg/geolm/discount"
	"github.com/cognicore/geolm/pkg/geolm/gram"
	"github.com/cognicore/geolm/pkg/geolm/internalerr"
)

// State is a model's lifecycle stage.
type State int

const (
	Building State = iota
	LocallyFinished
	GloballyFinished
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case LocallyFinished:
		return "locally-finished"
	case GloballyFinished:
		return "globally-finished"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// probSlack absorbs floating-point rounding in the [0,1] range check.
const probSlack = 1e-12

// Options configures a Model.
type Options struct {
	Strategy discount.Strategy
	// Interpolate mixes every lookup with the global distribution; otherwise
	// the model backs off to it only for grams it has not seen.
	Interpolate bool
	// NoteGlobally folds this model's counts into the Aggregator on FinishLocal.
	NoteGlobally bool
	// MinCount collapses grams whose count is below it into the OOV gram.
	MinCount float64
	// Weights rescales counts per gram on FinishLocal; nil disables weighting.
	// Grams missing from the map get DefaultWeight. A weight of 0 drops the gram.
	Weights       map[gram.Gram]float64
	DefaultWeight float64
	// Order is the n-gram length used by AddDocument; 0 means 1.
	Order int
}

// Model is a smoothed distribution over grams.
type Model struct {
	agg   *aggregate.Aggregator
	table *gram.Table
	opts  Options

	counts *counts.Counts
	state  State

	// fixed by FinishGlobal
	numTokens         float64
	unseenMass        float64
	overallUnseenMass float64
}

// New creates an empty model in the Building state.
func New(agg *aggregate.Aggregator, table *gram.Table, opts Options) *Model {
	if opts.Order <= 0 {
		opts.Order = 1
	}
	return &Model{
		agg:    agg,
		table:  table,
		opts:   opts,
		counts: counts.New(),
	}
}

func (m *Model) mustBuild(op string) {
	if m.state != Building {
		panic(fmt.Sprintf("langmodel: %s on model in state %s", op, m.state))
	}
}

func (m *Model) mustQuery(op string) {
	if m.state != GloballyFinished {
		panic(fmt.Sprintf("langmodel: %s on model in state %s", op, m.state))
	}
}

// AddGram adds count occurrences of g.
func (m *Model) AddGram(g gram.Gram, count float64) {
	m.mustBuild("AddGram")
	if count < 0 || math.IsNaN(count) {
		panic(fmt.Sprintf("langmodel: negative count %v for gram %d", count, g))
	}
	m.counts.Add(g, count)
}

// AddDocument counts the grams of a word sequence: single words, or every
// window of Order consecutive words.
func (m *Model) AddDocument(words []string) {
	m.mustBuild("AddDocument")
	n := m.opts.Order
	for i := 0; i+n <= len(words); i++ {
		m.counts.Add(m.table.InternWords(words[i:i+n]), 1)
	}
}

// AddModel incorporates another model's counts scaled by weight.
func (m *Model) AddModel(other *Model, weight float64) {
	m.mustBuild("AddModel")
	if weight <= 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		panic(fmt.Sprintf("langmodel: AddModel weight %v must be positive", weight))
	}
	other.counts.Each(func(g gram.Gram, c float64) {
		m.counts.Add(g, c*weight)
	})
}

// CollapseRare moves every gram whose count is below minCount into oov.
// The oov gram itself is never collapsed, so repeating the call is a no-op.
func CollapseRare(c *counts.Counts, minCount float64, oov gram.Gram) {
	if minCount <= 0 {
		return
	}
	for _, p := range c.Snapshot() {
		if p.Gram == oov || p.Count >= minCount {
			continue
		}
		c.Remove(p.Gram)
		c.Add(oov, p.Count)
	}
}

func (m *Model) applyWeights() {
	for _, p := range m.counts.Snapshot() {
		w, ok := m.opts.Weights[p.Gram]
		if !ok {
			w = m.opts.DefaultWeight
		}
		switch {
		case w == 0:
			m.counts.Remove(p.Gram)
		case w != 1:
			m.counts.Set(p.Gram, p.Count*w)
		}
	}
}

// FinishLocal applies local cleanup and, when NoteGlobally is set, registers
// the counts with the Aggregator. It returns internalerr.ErrEmptyModel when
// nothing is left; the model then stays in Building.
func (m *Model) FinishLocal() error {
	m.mustBuild("FinishLocal")

	CollapseRare(m.counts, m.opts.MinCount, m.table.InternWords([]string{gram.OOV}))
	if m.opts.Weights != nil {
		m.applyWeights()
	}

	if m.counts.NumTypes() == 0 || m.counts.NumTokens() <= 0 {
		return internalerr.ErrEmptyModel
	}

	if m.opts.NoteGlobally {
		m.agg.Note(m.counts)
	}
	m.state = LocallyFinished
	return nil
}

// FinishGlobal fixes the smoothing parameters from the finished Aggregator.
func (m *Model) FinishGlobal() {
	if m.state != LocallyFinished {
		panic(fmt.Sprintf("langmodel: FinishGlobal on model in state %s", m.state))
	}
	if !m.agg.Finished() {
		panic("langmodel: FinishGlobal before global statistics were finished")
	}

	m.numTokens = m.counts.NumTokens()
	m.unseenMass = m.opts.Strategy.UnseenMass(discount.Stats{
		NumTokens:    m.numTokens,
		NumTypes:     m.counts.NumTypes(),
		NumTypesOnce: m.counts.NumTypesWithCount(1),
	})

	seen := 0.0
	m.counts.Each(func(g gram.Gram, _ float64) {
		seen += m.agg.OverallProb(g)
	})
	m.overallUnseenMass = math.Min(1, math.Max(0, m.agg.TotalMass()-seen))

	m.state = GloballyFinished
}

// prob is the lookup shared by every query; callers check the state.
func (m *Model) prob(g gram.Gram) float64 {
	count, seen := m.counts.Lookup(g)

	var p float64
	switch {
	case m.opts.Interpolate:
		p = count/m.numTokens*(1-m.unseenMass) + m.agg.OverallProb(g)*m.unseenMass
	case seen:
		p = count / m.numTokens * (1 - m.unseenMass)
	case m.overallUnseenMass > 0:
		p = m.unseenMass * m.agg.OverallProb(g) / m.overallUnseenMass
	}

	if p < 0 || p > 1+probSlack || math.IsNaN(p) {
		panic(fmt.Sprintf("langmodel: probability %v of gram %d out of [0,1] (count=%v tokens=%v unseen=%v overall-unseen=%v)",
			p, g, count, m.numTokens, m.unseenMass, m.overallUnseenMass))
	}
	return p
}

func (m *Model) logProb(g gram.Gram) float64 {
	p := m.prob(g)
	if p == 0 {
		return 0
	}
	return math.Log(p)
}

// Probability returns the smoothed probability of g in [0,1]. A gram seen
// neither locally nor globally has probability 0 under back-off.
func (m *Model) Probability(g gram.Gram) float64 {
	m.mustQuery("Probability")
	return m.prob(g)
}

// LogProbability returns log Probability(g), or 0 when the probability is 0.
func (m *Model) LogProbability(g gram.Gram) float64 {
	m.mustQuery("LogProbability")
	return m.logProb(g)
}

// unseenCoefficient is c in p(g) = c*P(g) for grams absent from the model.
func (m *Model) unseenCoefficient() float64 {
	if m.opts.Interpolate {
		return m.unseenMass
	}
	if m.overallUnseenMass <= 0 {
		return 0
	}
	return m.unseenMass / m.overallUnseenMass
}

// State returns the lifecycle stage.
func (m *Model) State() State { return m.state }

// Counts exposes the underlying counts. Callers must not modify them.
func (m *Model) Counts() *counts.Counts { return m.counts }

// Table returns the interning table grams are resolved against.
func (m *Model) Table() *gram.Table { return m.table }

// Aggregator returns the run's global statistics.
func (m *Model) Aggregator() *aggregate.Aggregator { return m.agg }

// NumTypes returns the number of distinct grams.
func (m *Model) NumTypes() int { return m.counts.NumTypes() }

// NumTokens returns the total count mass.
func (m *Model) NumTokens() float64 { return m.counts.NumTokens() }

// UnseenMass returns the mass reserved for grams the model has not seen.
func (m *Model) UnseenMass() float64 { return m.unseenMass }

// OverallUnseenMass returns the global mass of grams outside the model.
func (m *Model) OverallUnseenMass() float64 { return m.overallUnseenMass }

// Interpolating reports the lookup policy.
func (m *Model) Interpolating() bool { return m.opts.Interpolate }

// Weighted reports whether per-gram weights were applied.
func (m *Model) Weighted() bool { return m.opts.Weights != nil }

// Strategy returns the discounting strategy.
func (m *Model) Strategy() discount.Strategy { return m.opts.Strategy }

// GramCount is one entry of a TopGrams listing.
type GramCount struct {
	Gram  gram.Gram
	Text  string
	Count float64
}

// TopGrams returns up to n grams by descending count (all when n <= 0).
func (m *Model) TopGrams(n int) []GramCount {
	out := make([]GramCount, 0, m.counts.NumTypes())
	m.counts.Each(func(g gram.Gram, c float64) {
		out = append(out, GramCount{Gram: g, Text: m.text(g), Count: c})
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Text < out[j].Text
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func (m *Model) text(g gram.Gram) string {
	return strings.Join(m.table.Words(g), " ")
}

// summaryGrams is how many grams String lists.
const summaryGrams = 10

func (m *Model) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model(%s, %s, types=%d, tokens=%g", m.state, m.opts.Strategy, m.counts.NumTypes(), m.counts.NumTokens())
	if m.state == GloballyFinished {
		fmt.Fprintf(&b, ", unseen=%.4g, overall-unseen=%.4g", m.unseenMass, m.overallUnseenMass)
	}
	b.WriteString(", top=[")
	for i, gc := range m.TopGrams(summaryGrams) {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%g", gc.Text, gc.Count)
	}
	b.WriteString("])")
	return b.String()
}
