// Package corpus supplies the records a run builds models from: an id, an
// optional label, the split the record belongs to and its count string.
package corpus

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/geolm/pkg/geolm/internalerr"
)

// Split names which part of the corpus a record belongs to.
type Split string

const (
	// SplitTraining records contribute to global statistics.
	SplitTraining Split = "training"
	SplitDev      Split = "dev"
	SplitTest     Split = "test"
)

// ParseSplit accepts the split names used in corpus files. An empty name
// means training.
func ParseSplit(s string) (Split, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "train", "training":
		return SplitTraining, nil
	case "dev":
		return SplitDev, nil
	case "test":
		return SplitTest, nil
	}
	return "", fmt.Errorf("%w: unknown split %q", internalerr.ErrInvalidInput, s)
}

// Record is one text unit of the corpus.
type Record struct {
	ID     string `json:"id"`
	Label  string `json:"label,omitempty"`
	Split  Split  `json:"split,omitempty"`
	Counts string `json:"counts"`
}

// Training reports whether the record feeds global statistics.
func (r Record) Training() bool { return r.Split == SplitTraining }

// normalize fills a missing id and split and checks the split name.
func (r *Record) normalize() error {
	if strings.TrimSpace(r.ID) == "" {
		r.ID = ulid.Make().String()
	}
	split, err := ParseSplit(string(r.Split))
	if err != nil {
		return err
	}
	r.Split = split
	return nil
}

// Source yields corpus records in a stable order.
type Source interface {
	Records(ctx context.Context) ([]Record, error)
}

// MemorySource is a Source over records held in memory.
type MemorySource struct {
	records []Record
	ids     map[string]struct{}
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource() *MemorySource {
	return &MemorySource{ids: make(map[string]struct{})}
}

// Add appends a record, assigning an id when it has none. Ids must be unique.
func (m *MemorySource) Add(r Record) (Record, error) {
	if err := r.normalize(); err != nil {
		return Record{}, err
	}
	if _, dup := m.ids[r.ID]; dup {
		return Record{}, fmt.Errorf("%w: record %q", internalerr.ErrDuplicate, r.ID)
	}
	m.ids[r.ID] = struct{}{}
	m.records = append(m.records, r)
	return r, nil
}

// Records returns a copy of the records in insertion order.
func (m *MemorySource) Records(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Len returns the number of records.
func (m *MemorySource) Len() int { return len(m.records) }
