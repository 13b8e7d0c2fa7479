package stoplist

import (
	"math"
	"sort"
	"strings"

	"github.com/cognicore/geolm/pkg/geolm/aggregate"
	"github.com/cognicore/geolm/pkg/geolm/gram"
)

// Manager holds the stopwords the builder rejects
type Manager struct {
	stops map[string]Reason
}

// Reason explains why a token is a stopword
type Reason struct {
	HighDF    bool    // appears in most training documents
	DFPercent float64 // document frequency as a percentage of the corpus
	IDF       float64 // inverse document frequency
}

// NewManager creates a new stoplist manager
func NewManager(initialStops []string) *Manager {
	stops := make(map[string]Reason, len(initialStops))
	for _, s := range initialStops {
		stops[s] = Reason{}
	}
	return &Manager{stops: stops}
}

// IsStop checks if a token is a stopword
func (m *Manager) IsStop(token string) bool {
	if m == nil {
		return false
	}
	_, ok := m.stops[token]
	return ok
}

// Add adds a token to the stoplist with a reason
func (m *Manager) Add(token string, reason Reason) {
	m.stops[token] = reason
}

// Remove removes a token from the stoplist
func (m *Manager) Remove(token string) {
	delete(m.stops, token)
}

// Reason returns why token is a stopword
func (m *Manager) Reason(token string) (Reason, bool) {
	if m == nil {
		return Reason{}, false
	}
	r, ok := m.stops[token]
	return r, ok
}

// Len returns the number of stopwords
func (m *Manager) Len() int {
	if m == nil {
		return 0
	}
	return len(m.stops)
}

// All returns all stopwords, sorted
func (m *Manager) All() []string {
	result := make([]string, 0, len(m.stops))
	for s := range m.stops {
		result = append(result, s)
	}
	sort.Strings(result)
	return result
}

// Lowercased returns a copy of the manager with every stopword lowercased,
// for use when the builder folds case.
func (m *Manager) Lowercased() *Manager {
	out := &Manager{stops: make(map[string]Reason, len(m.stops))}
	for s, r := range m.stops {
		out.stops[strings.ToLower(s)] = r
	}
	return out
}

// Stats holds document-frequency statistics for candidate evaluation
type Stats struct {
	Token     string
	DF        int64
	DFPercent float64
	IDF       float64
}

// Candidate represents a candidate stopword
type Candidate struct {
	Token  string
	Reason Reason
	Score  float64 // confidence score
}

// Thresholds defines criteria for stopword identification
type Thresholds struct {
	DFPercent float64 // e.g., 80% - appears in 80% of documents
	MinDocs   int64   // corpus size below which nothing is suggested
}

// DefaultThresholds returns sensible default thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DFPercent: 80.0,
		MinDocs:   10,
	}
}

// CollectStats gathers per-gram document frequencies from the run's
// aggregator, highest DF first.
func CollectStats(agg *aggregate.Aggregator, table *gram.Table) []Stats {
	n := agg.NumDocuments()
	var stats []Stats
	agg.EachDocFreq(func(g gram.Gram, df int64) {
		s := Stats{Token: strings.Join(table.Words(g), " "), DF: df}
		if n > 0 {
			s.DFPercent = 100 * float64(df) / float64(n)
			s.IDF = math.Log(float64(n) / float64(df))
		}
		stats = append(stats, s)
	})
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].DF != stats[j].DF {
			return stats[i].DF > stats[j].DF
		}
		return stats[i].Token < stats[j].Token
	})
	return stats
}

// SuggestCandidates suggests tokens that should be stopwords
func (m *Manager) SuggestCandidates(stats []Stats, numDocs int64, thresholds Thresholds) []Candidate {
	var candidates []Candidate

	if thresholds.DFPercent == 0 {
		thresholds.DFPercent = 80
	}
	if numDocs < thresholds.MinDocs {
		return nil
	}

	for _, s := range stats {
		if m.IsStop(s.Token) {
			continue // already a stopword
		}
		if s.DFPercent <= thresholds.DFPercent {
			continue
		}
		candidates = append(candidates, Candidate{
			Token: s.Token,
			Reason: Reason{
				HighDF:    true,
				DFPercent: s.DFPercent,
				IDF:       s.IDF,
			},
			Score: s.DFPercent / 100.0,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}
