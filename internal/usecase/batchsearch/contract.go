package batchsearch

import (
	"context"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/batch"
	"github.com/kailas-cloud/docdex/internal/index"
)

// Repository is the durable store of batches and their committed results.
type Repository interface {
	Save(ctx context.Context, bs batch.BatchSearch) (bool, error)
	// Claim is the atomic QUEUED -> RUNNING compare-and-set; exactly one
	// caller wins per batch identity.
	Claim(ctx context.Context, id string) (bool, error)
	// Commit writes the terminal state and every result row all-or-nothing.
	Commit(ctx context.Context, id string, state batch.State, errMsg string, results []batch.SearchResult) (bool, error)
	Get(ctx context.Context, user string) ([]batch.BatchSearch, error)
	Results(ctx context.Context, id string, offset, limit int) ([]batch.SearchResult, error)
	Cancel(ctx context.Context, id string) error
	IsCancelled(ctx context.Context, id string) (bool, error)
}

// Executor runs one page of a query against a project index.
type Executor interface {
	Run(ctx context.Context, query string, project domain.Project, cursor int) (index.Page, error)
}

// DedupFilter is the scoped insert-if-absent set consulted per hit.
type DedupFilter interface {
	PutIfAbsent(ctx context.Context, batchID string, project domain.Project, query, docID string) (bool, error)
	Clear(ctx context.Context, batchID string, projects []string) error
}

// FailureReporter records query-level failure causes for a batch. Clear
// drops a stale report once a batch finishes clean.
type FailureReporter interface {
	RecordFailure(ctx context.Context, batchID, query, cause string) error
	Clear(ctx context.Context, batchID string) error
}

// FailureReader serves the recorded failure causes of a batch.
type FailureReader interface {
	Failures(ctx context.Context, batchID string) (map[string]string, error)
}

// Enqueuer hands a saved batch to the durable work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, bs batch.BatchSearch) error
}
