// Package gram interns vocabulary items (words or n-gram tuples) into small
// integer identifiers so count maps hash and compare cheaply.
package gram

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// Gram identifies an interned word or n-gram.
type Gram uint32

// OOV is the reserved text of the out-of-vocabulary gram that rare grams
// collapse into.
const OOV = "-OOV-"

// Separator joins the words of an n-gram inside its encoded key.
const Separator = ":"

// Table is a bidirectional mapping between raw strings and Grams.
// The same string always maps to the same Gram for the lifetime of the table.
type Table struct {
	mu    sync.RWMutex
	byKey map[string]Gram
	keys  []string
}

// NewTable creates an empty interning table.
func NewTable() *Table {
	return &Table{byKey: make(map[string]Gram)}
}

// Intern returns the Gram for key, allocating one if key is new.
func (t *Table) Intern(key string) Gram {
	t.mu.RLock()
	g, ok := t.byKey[key]
	t.mu.RUnlock()
	if ok {
		return g
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if g, ok := t.byKey[key]; ok {
		return g
	}
	g = Gram(len(t.keys))
	t.keys = append(t.keys, key)
	t.byKey[key] = g
	return g
}

// InternWords interns an n-gram given as its word sequence.
func (t *Table) InternWords(words []string) Gram {
	return t.Intern(EncodeWords(words))
}

// Lookup returns the Gram for key without allocating a new one.
func (t *Table) Lookup(key string) (Gram, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	g, ok := t.byKey[key]
	return g, ok
}

// Unintern returns the string a Gram was interned from. It panics on a Gram
// this table never produced.
func (t *Table) Unintern(g Gram) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(g) >= len(t.keys) {
		panic(fmt.Sprintf("gram: unknown gram %d (table size %d)", g, len(t.keys)))
	}
	return t.keys[g]
}

// Words returns the word sequence of an n-gram Gram.
func (t *Table) Words(g Gram) []string {
	words, err := DecodeKey(t.Unintern(g))
	if err != nil {
		// Keys only enter the table through Intern, so a key that was not
		// produced by EncodeWords is returned whole.
		return []string{t.Unintern(g)}
	}
	return words
}

// Len returns the number of interned grams.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.keys)
}

var escaper = strings.NewReplacer(
	"%", "%25",
	":", "%3A",
	" ", "%20",
	"\t", "%09",
	"\n", "%0A",
	"\r", "%0D",
)

// Escape percent-encodes the characters that delimit count-string fields.
func Escape(word string) string {
	return escaper.Replace(word)
}

// Unescape reverses Escape (and any other %XX sequence).
func Unescape(s string) (string, error) {
	return url.PathUnescape(s)
}

// EncodeWords builds the key of an n-gram: escaped words joined by Separator.
// A single word encodes to its escaped form.
func EncodeWords(words []string) string {
	escaped := make([]string, len(words))
	for i, w := range words {
		escaped[i] = Escape(w)
	}
	return strings.Join(escaped, Separator)
}

// DecodeKey splits an encoded n-gram key back into its words.
func DecodeKey(key string) ([]string, error) {
	parts := strings.Split(key, Separator)
	words := make([]string, len(parts))
	for i, p := range parts {
		w, err := Unescape(p)
		if err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		words[i] = w
	}
	return words, nil
}
