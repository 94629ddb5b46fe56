package batchsearch

import (
	"time"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/batch"
)

// Sink accumulates result rows for one in-flight batch before commit,
// assigning each query its 1-based documentNumber in discovery order.
// It is owned by a single runner goroutine and is never visible to readers
// until the repository commit.
type Sink struct {
	ranks   map[string]int
	results []batch.SearchResult
}

// NewSink creates an empty result sink.
func NewSink() *Sink {
	return &Sink{ranks: make(map[string]int)}
}

// Append records a surviving hit for a query and returns the stored result.
func (s *Sink) Append(query string, doc domain.DocumentRef, created time.Time) batch.SearchResult {
	s.ranks[query]++
	r := batch.SearchResult{
		Query:          query,
		DocumentID:     doc.ID,
		RootID:         doc.RootID,
		DocumentPath:   doc.Path,
		CreationDate:   created,
		DocumentNumber: s.ranks[query],
	}
	s.results = append(s.results, r)
	return r
}

// Results exposes the accumulated set for the final commit.
func (s *Sink) Results() []batch.SearchResult {
	return s.results
}

// Len returns the number of accumulated results.
func (s *Sink) Len() int {
	return len(s.results)
}
