package batch

import "time"

// SearchResult is one committed hit of a batch query.
// Identity is (Query, DocumentID); the remaining fields are descriptive.
type SearchResult struct {
	Query        string
	DocumentID   string
	RootID       string
	DocumentPath string
	CreationDate time.Time
	// DocumentNumber is the 1-based rank assigned in discovery order for the
	// query within its batch. It never changes and is never reused.
	DocumentNumber int
}

// Same reports result identity: two results are equal iff query and
// document id match, independent of provenance fields.
func (r SearchResult) Same(o SearchResult) bool {
	return r.Query == o.Query && r.DocumentID == o.DocumentID
}
