// Package index runs batch queries against the full-text index. The index
// is consumed, never built, by this package.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/docdex/internal/db"
	"github.com/kailas-cloud/docdex/internal/domain"
)

const (
	defaultPageSize = 100
	defaultMaxHits  = 10000
)

// store is the consumer interface for the executor (ISP).
type store interface {
	SearchPage(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Hit is one document match with provenance.
type Hit struct {
	Doc     domain.DocumentRef
	Score   float64
	Created time.Time
}

// Page is one ordered slice of matches. NextCursor is -1 at the end of the
// result stream.
type Page struct {
	Hits       []Hit
	NextCursor int
}

// End marks an exhausted cursor.
const End = -1

// Executor drives one query against a project index in a paginate loop.
type Executor struct {
	store    store
	pageSize int
	maxHits  int
}

// New creates a search executor.
func New(s store) *Executor {
	return &Executor{store: s, pageSize: defaultPageSize, maxHits: defaultMaxHits}
}

// WithPageSize configures the scroll page size.
func (e *Executor) WithPageSize(n int) *Executor {
	if n > 0 {
		e.pageSize = n
	}
	return e
}

// WithMaxHits configures the maximum result count per query.
func (e *Executor) WithMaxHits(n int) *Executor {
	if n > 0 {
		e.maxHits = n
	}
	return e
}

// MaxHits returns the configured per-query result ceiling.
func (e *Executor) MaxHits() int { return e.maxHits }

// Run fetches one page of matches for the query at the given cursor.
// Matches are ordered by relevance score descending, ties broken by document
// id ascending, so documentNumber assignment is reproducible for the same
// index state. A rejected query maps to domain.ErrMalformedQuery; any other
// failure maps to domain.ErrIndexUnavailable and is worth a bounded retry.
func (e *Executor) Run(ctx context.Context, query string, project domain.Project, cursor int) (Page, error) {
	if cursor < 0 {
		return Page{NextCursor: End}, nil
	}

	limit := e.pageSize
	if remaining := e.maxHits - cursor; remaining < limit {
		limit = remaining
	}
	if limit <= 0 {
		return Page{NextCursor: End}, nil
	}

	result, err := e.store.SearchPage(ctx, &db.TextQuery{
		IndexName:    indexName(project),
		Query:        query,
		Offset:       cursor,
		Limit:        limit,
		ReturnFields: []string{"root_id", "path", "created"},
	})
	if err != nil {
		if errors.Is(err, db.ErrBadQuery) {
			return Page{}, fmt.Errorf("query %q: %w", query, domain.ErrMalformedQuery)
		}
		return Page{}, fmt.Errorf("query %q: %w: %w", query, domain.ErrIndexUnavailable, err)
	}

	hits := make([]Hit, 0, len(result.Entries))
	for _, entry := range result.Entries {
		docID := extractDocID(entry.Key, project)
		hit := Hit{
			Doc: domain.DocumentRef{
				ID:     docID,
				RootID: docID,
				Path:   entry.Fields["path"],
			},
			Score: entry.Score,
		}
		if rootID := entry.Fields["root_id"]; rootID != "" {
			hit.Doc.RootID = rootID
		}
		if created := entry.Fields["created"]; created != "" {
			if sec, err := strconv.ParseInt(created, 10, 64); err == nil {
				hit.Created = time.Unix(sec, 0).UTC()
			}
		}
		hits = append(hits, hit)
	}

	// Deterministic total order within the page.
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Doc.ID < hits[j].Doc.ID
	})

	next := cursor + len(hits)
	if len(hits) < limit || next >= result.Total || next >= e.maxHits {
		next = End
	}

	return Page{Hits: hits, NextCursor: next}, nil
}

func indexName(project domain.Project) string {
	return fmt.Sprintf("%s%s:idx", domain.KeyPrefix, project)
}

func extractDocID(key string, project domain.Project) string {
	prefix := fmt.Sprintf("%s%s:doc:", domain.KeyPrefix, project)
	return strings.TrimPrefix(key, prefix)
}
