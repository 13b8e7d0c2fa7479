package langmodel

import (
	"fmt"
	"math"
	"sort"

	"github.com/cognicore/geolm/pkg/geolm/gram"
)

// KLTolerance is the largest absolute difference allowed between the fast and
// slow KL-divergence in KLVerify mode.
const KLTolerance = 1e-8

// KLMode selects the KL-divergence implementation.
type KLMode int

const (
	KLFast KLMode = iota
	KLSlow
	// KLVerify computes both and panics if they disagree.
	KLVerify
)

func (m KLMode) String() string {
	switch m {
	case KLFast:
		return "fast"
	case KLSlow:
		return "slow"
	case KLVerify:
		return "verify"
	}
	return fmt.Sprintf("klmode(%d)", int(m))
}

// ParseKLMode maps a configuration string to a KLMode.
func ParseKLMode(s string) (KLMode, error) {
	switch s {
	case "", "fast":
		return KLFast, nil
	case "slow":
		return KLSlow, nil
	case "verify":
		return KLVerify, nil
	}
	return KLFast, fmt.Errorf("unknown kl mode %q", s)
}

func mustShareRun(self, other *Model) {
	if self.agg != other.agg {
		panic("langmodel: models belong to different runs")
	}
}

// SlowKLDivergence computes D(self || other) directly against the live count
// maps. With partial set only grams seen in self are summed; otherwise grams
// seen only in other and grams known only globally are added too. Grams no
// model or global statistic has seen contribute nothing, as do terms whose p
// or q is 0. When contribs is non-nil each gram's signed contribution is
// added to it.
func SlowKLDivergence(self, other *Model, partial bool, contribs map[gram.Gram]float64) float64 {
	self.mustQuery("SlowKLDivergence")
	other.mustQuery("SlowKLDivergence")
	mustShareRun(self, other)

	kl := 0.0
	term := func(g gram.Gram) {
		p := self.prob(g)
		q := other.prob(g)
		if p == 0 || q == 0 {
			return
		}
		c := p * math.Log(p/q)
		kl += c
		if contribs != nil {
			contribs[g] += c
		}
	}

	self.counts.Each(func(g gram.Gram, _ float64) {
		term(g)
	})
	if partial {
		return kl
	}

	other.counts.Each(func(g gram.Gram, _ float64) {
		if !self.counts.Contains(g) {
			term(g)
		}
	})

	self.agg.EachOverall(func(g gram.Gram, _ float64) {
		if !self.counts.Contains(g) && !other.counts.Contains(g) {
			term(g)
		}
	})
	return kl
}

// Cache is a flat snapshot of one model's counts for repeated fast
// KL-divergence calls against many other models.
type Cache struct {
	model  *Model
	keys   []gram.Gram
	values []float64
}

// NewCache snapshots m, which must be globally finished.
func NewCache(m *Model) *Cache {
	m.mustQuery("NewCache")
	c := &Cache{
		model:  m,
		keys:   make([]gram.Gram, 0, m.counts.NumTypes()),
		values: make([]float64, 0, m.counts.NumTypes()),
	}
	m.counts.Each(func(g gram.Gram, v float64) {
		c.keys = append(c.keys, g)
		c.values = append(c.values, v)
	})
	return c
}

// Model returns the model the cache was taken from.
func (c *Cache) Model() *Model { return c.model }

// FastKLDivergence computes the same value as SlowKLDivergence for the cached
// model against other. Lookups are inlined and the globally-known grams seen
// by neither model are summed in closed form: for such a gram p = cS*P(g) and
// q = cO*P(g), so their total is cS*log(cS/cO) times their global mass, which
// is whatever global mass steps one and two did not visit.
func FastKLDivergence(cache *Cache, other *Model, partial bool) float64 {
	self := cache.model
	other.mustQuery("FastKLDivergence")
	mustShareRun(self, other)
	agg := self.agg

	sTokens, sUnseen, sOverall, sInterp := self.numTokens, self.unseenMass, self.overallUnseenMass, self.opts.Interpolate
	oTokens, oUnseen, oOverall, oInterp := other.numTokens, other.unseenMass, other.overallUnseenMass, other.opts.Interpolate

	kl := 0.0
	visited := 0.0

	for i, g := range cache.keys {
		global := agg.OverallProb(g)
		visited += global

		p := cache.values[i] / sTokens * (1 - sUnseen)
		if sInterp {
			p += global * sUnseen
		}

		var q float64
		oc, inOther := other.counts.Lookup(g)
		switch {
		case oInterp:
			q = oc/oTokens*(1-oUnseen) + global*oUnseen
		case inOther:
			q = oc / oTokens * (1 - oUnseen)
		case oOverall > 0:
			q = oUnseen * global / oOverall
		}

		if p > 0 && q > 0 {
			kl += p * math.Log(p/q)
		}
	}

	if partial {
		return kl
	}

	other.counts.Each(func(g gram.Gram, oc float64) {
		if self.counts.Contains(g) {
			return
		}
		global := agg.OverallProb(g)
		visited += global

		var p float64
		switch {
		case sInterp:
			p = global * sUnseen
		case sOverall > 0:
			p = sUnseen * global / sOverall
		}

		q := oc / oTokens * (1 - oUnseen)
		if oInterp {
			q += global * oUnseen
		}

		if p > 0 && q > 0 {
			kl += p * math.Log(p/q)
		}
	})

	cS := self.unseenCoefficient()
	cO := other.unseenCoefficient()
	neither := agg.TotalMass() - visited
	if neither > 0 && cS > 0 && cO > 0 {
		kl += cS * neither * math.Log(cS/cO)
	}
	return kl
}

// KLDivergence computes D(self || other) with the given implementation.
// cache may be nil or a cache of self; it is only used by the fast path.
func KLDivergence(self, other *Model, partial bool, mode KLMode, cache *Cache) float64 {
	if mode == KLSlow {
		return SlowKLDivergence(self, other, partial, nil)
	}

	if cache == nil || cache.model != self {
		cache = NewCache(self)
	}
	fast := FastKLDivergence(cache, other, partial)
	if mode == KLVerify {
		slow := SlowKLDivergence(self, other, partial, nil)
		if math.Abs(fast-slow) > KLTolerance {
			panic(fmt.Sprintf("langmodel: fast KL-divergence %.12g differs from slow %.12g (partial=%v)", fast, slow, partial))
		}
	}
	return fast
}

// KLDivergence is the fast, full KL-divergence D(m || other).
func (m *Model) KLDivergence(other *Model) float64 {
	return KLDivergence(m, other, false, KLFast, nil)
}

// Contribution is one gram's share of a score.
type Contribution struct {
	Gram  gram.Gram `json:"-"`
	Text  string    `json:"gram"`
	Score float64   `json:"score"`
}

func sortContributions(out []Contribution) {
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Score), math.Abs(out[j].Score)
		if ai != aj {
			return ai > aj
		}
		return out[i].Text < out[j].Text
	})
}

// KLContributions returns each gram's signed KL-divergence contribution,
// largest magnitude first, truncated to n when n > 0.
func KLContributions(self, other *Model, partial bool, n int) []Contribution {
	contribs := make(map[gram.Gram]float64)
	SlowKLDivergence(self, other, partial, contribs)

	out := make([]Contribution, 0, len(contribs))
	for g, c := range contribs {
		out = append(out, Contribution{Gram: g, Text: self.text(g), Score: c})
	}
	sortContributions(out)
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
