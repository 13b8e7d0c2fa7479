package builder

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cognicore/geolm/pkg/geolm/counts"
	"github.com/cognicore/geolm/pkg/geolm/gram"
	"github.com/cognicore/geolm/pkg/geolm/internalerr"
)

// RawCount is one parsed TOKEN:COUNT entry. Words has one element for a
// unigram and n elements for an n-gram.
type RawCount struct {
	Words []string
	Count float64
}

// ParseCounts parses a whitespace-separated list of TOKEN:COUNT entries.
// TOKEN is a word, or the words of an n-gram joined by ':', each
// percent-escaped; the count follows the last ':'. A gram listed twice is an
// error wrapping both internalerr.ErrDuplicate and internalerr.ErrMalformedCounts;
// any other syntax problem wraps internalerr.ErrMalformedCounts.
func ParseCounts(s string) ([]RawCount, error) {
	fields := strings.Fields(s)
	out := make([]RawCount, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))

	for i, tok := range fields {
		idx := strings.LastIndex(tok, gram.Separator)
		if idx < 0 {
			return nil, fmt.Errorf("%w: entry %d %q has no count", internalerr.ErrMalformedCounts, i+1, tok)
		}
		if idx == 0 {
			return nil, fmt.Errorf("%w: entry %d %q has an empty token", internalerr.ErrMalformedCounts, i+1, tok)
		}

		count, err := strconv.ParseFloat(tok[idx+1:], 64)
		if err != nil || math.IsNaN(count) || math.IsInf(count, 0) || count < 0 {
			return nil, fmt.Errorf("%w: entry %d %q has bad count %q", internalerr.ErrMalformedCounts, i+1, tok, tok[idx+1:])
		}

		words, err := gram.DecodeKey(tok[:idx])
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", internalerr.ErrMalformedCounts, i+1, err)
		}
		for _, w := range words {
			if w == "" {
				return nil, fmt.Errorf("%w: entry %d %q has an empty word", internalerr.ErrMalformedCounts, i+1, tok)
			}
		}

		key := gram.EncodeWords(words)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: %w: gram %q appears twice", internalerr.ErrMalformedCounts, internalerr.ErrDuplicate, key)
		}
		seen[key] = struct{}{}

		out = append(out, RawCount{Words: words, Count: count})
	}
	return out, nil
}

// EncodeCounts renders counts in the format ParseCounts reads, sorted by
// token so the output is stable.
func EncodeCounts(table *gram.Table, c *counts.Counts) string {
	pairs := c.Snapshot()
	keys := make([]string, len(pairs))
	for i, p := range pairs {
		keys[i] = table.Unintern(p.Gram)
	}
	idx := make([]int, len(pairs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return keys[idx[a]] < keys[idx[b]] })

	var b strings.Builder
	for n, i := range idx {
		if n > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(keys[i])
		b.WriteString(gram.Separator)
		b.WriteString(strconv.FormatFloat(pairs[i].Count, 'f', -1, 64))
	}
	return b.String()
}

// EncodeWordCounts renders a word→count map, for callers that count words
// before any interning table exists.
func EncodeWordCounts(wordCounts map[string]float64) string {
	words := make([]string, 0, len(wordCounts))
	for w := range wordCounts {
		words = append(words, w)
	}
	sort.Strings(words)

	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(gram.Escape(w))
		b.WriteString(gram.Separator)
		b.WriteString(strconv.FormatFloat(wordCounts[w], 'f', -1, 64))
	}
	return b.String()
}
