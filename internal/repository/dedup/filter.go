// Package dedup is the persistent set the runner consults so a document is
// reported at most once per query within the configured scope.
package dedup

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docdex/internal/domain"
)

// Scope is the boundary within which a (query, document) pair is reported
// at most once.
type Scope string

const (
	// ScopeBatch resets the filter per submission: re-running an identical
	// batch yields identical results.
	ScopeBatch Scope = "batch"
	// ScopeProject persists the filter across every batch run against the
	// project: an unchanged index yields empty second-run results.
	ScopeProject Scope = "project"
)

// store is the consumer interface for the dedup filter (ISP).
type store interface {
	SAdd(ctx context.Context, key string, members ...string) (int64, error)
	SIsMember(ctx context.Context, key, member string) (bool, error)
	Del(ctx context.Context, key string) error
}

// Filter implements usecase/batchsearch.DedupFilter on a Redis set.
type Filter struct {
	store   store
	scope   Scope
	setName string
}

// New creates a dedup filter. setName is the configured backing set
// identifier supplied by the deployment, not owned by this package.
func New(s store, scope Scope, setName string) *Filter {
	return &Filter{store: s, scope: scope, setName: setName}
}

// Scope returns the configured dedup boundary.
func (f *Filter) Scope() Scope { return f.scope }

// PutIfAbsent atomically inserts the (query, document) pair into the scoped
// set. Returns true when the pair was absent, meaning the caller should
// report the document; SADD makes the membership test and the insertion a
// single step, safe across concurrent workers.
func (f *Filter) PutIfAbsent(ctx context.Context, batchID string, project domain.Project, query, docID string) (bool, error) {
	added, err := f.store.SAdd(ctx, f.key(batchID, project), member(query, docID))
	if err != nil {
		return false, fmt.Errorf("dedup put: %w", err)
	}
	return added > 0, nil
}

// Contains tests membership without inserting.
func (f *Filter) Contains(ctx context.Context, batchID string, project domain.Project, query, docID string) (bool, error) {
	ok, err := f.store.SIsMember(ctx, f.key(batchID, project), member(query, docID))
	if err != nil {
		return false, fmt.Errorf("dedup contains: %w", err)
	}
	return ok, nil
}

// Clear drops the per-batch set once the batch reaches a terminal state.
// Project-scoped sets outlive individual batches and are left untouched.
func (f *Filter) Clear(ctx context.Context, batchID string, projects []string) error {
	if f.scope != ScopeBatch {
		return nil
	}
	if err := f.store.Del(ctx, f.key(batchID, "")); err != nil {
		return fmt.Errorf("dedup clear: %w", err)
	}
	return nil
}

func (f *Filter) key(batchID string, project domain.Project) string {
	if f.scope == ScopeProject {
		return fmt.Sprintf("%s%s:prj:%s", domain.KeyPrefix, f.setName, project)
	}
	return fmt.Sprintf("%s%s:batch:%s", domain.KeyPrefix, f.setName, batchID)
}

// member joins query and document id with a separator that cannot appear in
// either, preserving (query, documentId) pair identity.
func member(query, docID string) string {
	return query + "\x1f" + docID
}
