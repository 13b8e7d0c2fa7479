// Package counts stores real-valued gram counts.
package counts

import "github.com/cognicore/geolm/pkg/geolm/gram"

// Counts is a multiset of grams with real-valued (possibly fractional) counts.
type Counts struct {
	m      map[gram.Gram]float64
	tokens float64
	dirty  bool
}

// Pair is one (gram, count) entry.
type Pair struct {
	Gram  gram.Gram
	Count float64
}

// New creates an empty count table.
func New() *Counts {
	return &Counts{m: make(map[gram.Gram]float64)}
}

// Add accumulates count onto g.
func (c *Counts) Add(g gram.Gram, count float64) {
	c.m[g] += count
	if !c.dirty {
		c.tokens += count
	}
}

// Set overwrites the count of g.
func (c *Counts) Set(g gram.Gram, count float64) {
	c.m[g] = count
	c.dirty = true
}

// Remove deletes g.
func (c *Counts) Remove(g gram.Gram) {
	if _, ok := c.m[g]; !ok {
		return
	}
	delete(c.m, g)
	c.dirty = true
}

// Contains reports whether g has an entry.
func (c *Counts) Contains(g gram.Gram) bool {
	_, ok := c.m[g]
	return ok
}

// Get returns the count of g, 0 when absent.
func (c *Counts) Get(g gram.Gram) float64 {
	return c.m[g]
}

// Lookup returns the count of g and whether it is present.
func (c *Counts) Lookup(g gram.Gram) (float64, bool) {
	v, ok := c.m[g]
	return v, ok
}

// Each calls fn for every entry. fn must not modify c; use Snapshot for that.
func (c *Counts) Each(fn func(g gram.Gram, count float64)) {
	for g, v := range c.m {
		fn(g, v)
	}
}

// Keys returns the grams in unspecified order.
func (c *Counts) Keys() []gram.Gram {
	keys := make([]gram.Gram, 0, len(c.m))
	for g := range c.m {
		keys = append(keys, g)
	}
	return keys
}

// Snapshot copies the entries so the caller can mutate c while iterating.
func (c *Counts) Snapshot() []Pair {
	pairs := make([]Pair, 0, len(c.m))
	for g, v := range c.m {
		pairs = append(pairs, Pair{Gram: g, Count: v})
	}
	return pairs
}

// NumTypes returns the number of distinct grams.
func (c *Counts) NumTypes() int {
	return len(c.m)
}

// NumTokens returns the sum of all counts, recomputed lazily after Set or Remove.
func (c *Counts) NumTokens() float64 {
	if c.dirty {
		total := 0.0
		for _, v := range c.m {
			total += v
		}
		c.tokens = total
		c.dirty = false
	}
	return c.tokens
}

// NumTypesWithCount returns how many grams have exactly the given count.
func (c *Counts) NumTypesWithCount(count float64) int {
	n := 0
	for _, v := range c.m {
		if v == count {
			n++
		}
	}
	return n
}

// Clone returns an independent copy.
func (c *Counts) Clone() *Counts {
	out := &Counts{m: make(map[gram.Gram]float64, len(c.m))}
	for g, v := range c.m {
		out.m[g] = v
	}
	out.dirty = true
	return out
}
