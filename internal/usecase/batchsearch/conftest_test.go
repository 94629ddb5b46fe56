package batchsearch

import (
	"context"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/batch"
	"github.com/kailas-cloud/docdex/internal/index"
)

// repoMock implements Repository with overridable behavior per test.
type repoMock struct {
	saveFunc        func(ctx context.Context, bs batch.BatchSearch) (bool, error)
	claimFunc       func(ctx context.Context, id string) (bool, error)
	commitFunc      func(ctx context.Context, id string, state batch.State, errMsg string, results []batch.SearchResult) (bool, error)
	getFunc         func(ctx context.Context, user string) ([]batch.BatchSearch, error)
	resultsFunc     func(ctx context.Context, id string, offset, limit int) ([]batch.SearchResult, error)
	cancelFunc      func(ctx context.Context, id string) error
	isCancelledFunc func(ctx context.Context, id string) (bool, error)

	commits []commitCall
}

type commitCall struct {
	id      string
	state   batch.State
	errMsg  string
	results []batch.SearchResult
}

func (m *repoMock) Save(ctx context.Context, bs batch.BatchSearch) (bool, error) {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, bs)
	}
	return true, nil
}

func (m *repoMock) Claim(ctx context.Context, id string) (bool, error) {
	if m.claimFunc != nil {
		return m.claimFunc(ctx, id)
	}
	return true, nil
}

func (m *repoMock) Commit(ctx context.Context, id string, state batch.State, errMsg string, results []batch.SearchResult) (bool, error) {
	m.commits = append(m.commits, commitCall{id: id, state: state, errMsg: errMsg, results: results})
	if m.commitFunc != nil {
		return m.commitFunc(ctx, id, state, errMsg, results)
	}
	return true, nil
}

func (m *repoMock) Get(ctx context.Context, user string) ([]batch.BatchSearch, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, user)
	}
	return nil, nil
}

func (m *repoMock) Results(ctx context.Context, id string, offset, limit int) ([]batch.SearchResult, error) {
	if m.resultsFunc != nil {
		return m.resultsFunc(ctx, id, offset, limit)
	}
	return nil, nil
}

func (m *repoMock) Cancel(ctx context.Context, id string) error {
	if m.cancelFunc != nil {
		return m.cancelFunc(ctx, id)
	}
	return nil
}

func (m *repoMock) IsCancelled(ctx context.Context, id string) (bool, error) {
	if m.isCancelledFunc != nil {
		return m.isCancelledFunc(ctx, id)
	}
	return false, nil
}

// execMock implements Executor.
type execMock struct {
	runFunc func(ctx context.Context, query string, project domain.Project, cursor int) (index.Page, error)
	calls   int
}

func (m *execMock) Run(ctx context.Context, query string, project domain.Project, cursor int) (index.Page, error) {
	m.calls++
	if m.runFunc != nil {
		return m.runFunc(ctx, query, project, cursor)
	}
	return index.Page{NextCursor: index.End}, nil
}

// singlePage returns hits once and ends the cursor.
func singlePage(hits ...index.Hit) func(ctx context.Context, query string, project domain.Project, cursor int) (index.Page, error) {
	return func(_ context.Context, _ string, _ domain.Project, cursor int) (index.Page, error) {
		if cursor != 0 {
			return index.Page{NextCursor: index.End}, nil
		}
		return index.Page{Hits: hits, NextCursor: index.End}, nil
	}
}

// dedupMock implements DedupFilter over an in-memory set.
type dedupMock struct {
	putFunc   func(ctx context.Context, batchID string, project domain.Project, query, docID string) (bool, error)
	seen      map[string]struct{}
	clearedID string
}

func newDedupMock() *dedupMock {
	return &dedupMock{seen: map[string]struct{}{}}
}

func (m *dedupMock) PutIfAbsent(ctx context.Context, batchID string, project domain.Project, query, docID string) (bool, error) {
	if m.putFunc != nil {
		return m.putFunc(ctx, batchID, project, query, docID)
	}
	key := batchID + "|" + query + "|" + docID
	if _, ok := m.seen[key]; ok {
		return false, nil
	}
	m.seen[key] = struct{}{}
	return true, nil
}

func (m *dedupMock) Clear(_ context.Context, batchID string, _ []string) error {
	m.clearedID = batchID
	return nil
}

// reporterMock implements FailureReporter.
type reporterMock struct {
	failures  map[string]string
	clearedID string
}

func newReporterMock() *reporterMock {
	return &reporterMock{failures: map[string]string{}}
}

func (m *reporterMock) RecordFailure(_ context.Context, _ string, query, cause string) error {
	m.failures[query] = cause
	return nil
}

func (m *reporterMock) Failures(_ context.Context, _ string) (map[string]string, error) {
	return m.failures, nil
}

func (m *reporterMock) Clear(_ context.Context, batchID string) error {
	m.clearedID = batchID
	return nil
}

// enqueuerMock implements Enqueuer.
type enqueuerMock struct {
	enqueueFunc func(ctx context.Context, bs batch.BatchSearch) error
	enqueued    []batch.BatchSearch
}

func (m *enqueuerMock) Enqueue(ctx context.Context, bs batch.BatchSearch) error {
	m.enqueued = append(m.enqueued, bs)
	if m.enqueueFunc != nil {
		return m.enqueueFunc(ctx, bs)
	}
	return nil
}
