// Package observability tracks routing behavior over time: which columns
// queries filter on and which backends selection actually picks. The numbers
// feed operator decisions about partition keys and backend profiles.
package observability

import (
	"sort"
	"sync"

	"github.com/irouter/irouter/pkg/types"
)

// QueryStats accumulates per-column predicate counts and per-backend
// selection counts. Safe for concurrent use.
type QueryStats struct {
	mu         sync.Mutex
	queries    int64
	complex    int64
	cacheHits  int64
	predicates map[string]int64
	backends   map[types.BackendKind]int64
}

// NewQueryStats creates an empty tracker.
func NewQueryStats() *QueryStats {
	return &QueryStats{
		predicates: make(map[string]int64),
		backends:   make(map[types.BackendKind]int64),
	}
}

// RecordQuery notes one routed query: its extraction outcome, the backend
// chosen, and whether the cache served it.
func (s *QueryStats) RecordQuery(extraction *types.ExtractionResult, backend types.BackendKind, fromCache bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queries++
	if fromCache {
		s.cacheHits++
	}
	if extraction != nil {
		if extraction.IsComplex {
			s.complex++
		}
		for _, p := range extraction.Predicates {
			s.predicates[p.Column]++
		}
	}
	s.backends[backend]++
}

// ColumnCount is one column's predicate frequency.
type ColumnCount struct {
	Column string
	Count  int64
}

// TopColumns returns the n most frequently filtered columns, most frequent
// first. Ties order by column name for stable output.
func (s *QueryStats) TopColumns(n int) []ColumnCount {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ColumnCount, 0, len(s.predicates))
	for col, count := range s.predicates {
		out = append(out, ColumnCount{Column: col, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Column < out[j].Column
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// Snapshot is a point-in-time copy of the tracker.
type Snapshot struct {
	Queries        int64
	ComplexQueries int64
	CacheHits      int64
	Backends       map[types.BackendKind]int64
}

// Snapshot returns a copy of the aggregate counters.
func (s *QueryStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	backends := make(map[types.BackendKind]int64, len(s.backends))
	for k, v := range s.backends {
		backends[k] = v
	}
	return Snapshot{
		Queries:        s.queries,
		ComplexQueries: s.complex,
		CacheHits:      s.cacheHits,
		Backends:       backends,
	}
}
