package ingest

import "github.com/cognicore/geolm/pkg/geolm/builder"

// WordCounts tallies tokens.
func WordCounts(tokens []string) map[string]float64 {
	out := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		out[tok]++
	}
	return out
}

// CountString renders tokens as a count string the builder can parse.
func CountString(tokens []string) string {
	return builder.EncodeWordCounts(WordCounts(tokens))
}

// TextCountString tokenizes text and renders its count string.
func (t *Tokenizer) TextCountString(text string) string {
	return CountString(t.Tokenize(text))
}
