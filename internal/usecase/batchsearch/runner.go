// Package batchsearch drives asynchronous batch search execution: claim,
// per-query execution with dedup, and the all-or-nothing terminal commit.
package batchsearch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/batch"
	"github.com/kailas-cloud/docdex/internal/index"
	"github.com/kailas-cloud/docdex/internal/metrics"
)

// RetryPolicy bounds transient-failure retries at query granularity.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy is applied unless overridden from configuration.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:    3,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     5 * time.Second,
}

// Runner executes one claimed batch at a time: a strictly sequential
// query loop, so documentNumber ordering stays deterministic.
type Runner struct {
	repo     Repository
	exec     Executor
	dedup    DedupFilter
	reporter FailureReporter
	retry    RetryPolicy
	logger   *zap.Logger
}

// NewRunner creates a batch search runner.
func NewRunner(repo Repository, exec Executor, dedup DedupFilter, logger *zap.Logger) *Runner {
	return &Runner{
		repo:   repo,
		exec:   exec,
		dedup:  dedup,
		retry:  DefaultRetryPolicy,
		logger: logger,
	}
}

// WithRetryPolicy overrides the per-query transient retry policy.
func (r *Runner) WithRetryPolicy(p RetryPolicy) *Runner {
	if p.MaxAttempts > 0 {
		r.retry = p
	}
	return r
}

// WithReporter attaches the durable failure report.
func (r *Runner) WithReporter(rep FailureReporter) *Runner {
	r.reporter = rep
	return r
}

// Process runs a delivered batch job to a terminal state. A redelivered job
// whose batch is no longer QUEUED is skipped, which keeps at-least-once
// delivery idempotent. Only a commit failure is returned to the queue.
func (r *Runner) Process(ctx context.Context, bs batch.BatchSearch) error {
	logger := r.logger.With(
		zap.String("batch", bs.ID),
		zap.String("user", bs.User),
		zap.Int("queries", len(bs.Queries)),
	)

	claimed, err := r.repo.Claim(ctx, bs.ID)
	if err != nil {
		return fmt.Errorf("claim %s: %w", bs.ID, err)
	}
	if !claimed {
		logger.Info("batch not claimable, skipping redelivery")
		return nil
	}
	logger.Info("batch claimed")

	sink := NewSink()
	var failed, succeeded int
	var firstErr error
	cancelled := false

	for _, query := range bs.Queries {
		if r.isCancelled(ctx, bs.ID, logger) {
			cancelled = true
			break
		}

		start := time.Now()
		err := r.runQuery(ctx, &bs, query, sink)
		metrics.QueryDuration.Observe(time.Since(start).Seconds())

		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
			metrics.BatchQueriesTotal.WithLabelValues("failed").Inc()
			logger.Warn("query failed", zap.String("query", query), zap.Error(err))
			if r.reporter != nil {
				if repErr := r.reporter.RecordFailure(ctx, bs.ID, query, err.Error()); repErr != nil {
					logger.Warn("failure report write failed", zap.Error(repErr))
				}
			}
			continue
		}
		succeeded++
		metrics.BatchQueriesTotal.WithLabelValues("ok").Inc()
	}

	state, errMsg := terminalState(succeeded, failed, cancelled, firstErr)

	if err := r.commit(ctx, bs.ID, state, errMsg, sink.Results()); err != nil {
		// The batch stays RUNNING for external recovery; it must never be
		// marked terminal without its results durably written.
		return fmt.Errorf("commit %s: %w", bs.ID, err)
	}

	metrics.BatchesTotal.WithLabelValues(state.String()).Inc()
	logger.Info("batch finished",
		zap.String("state", state.String()),
		zap.Int("results", sink.Len()),
		zap.Int("failed_queries", failed),
	)

	if err := r.dedup.Clear(ctx, bs.ID, bs.Projects); err != nil {
		logger.Warn("dedup cleanup failed", zap.Error(err))
	}
	if state == batch.Success && r.reporter != nil {
		if err := r.reporter.Clear(ctx, bs.ID); err != nil {
			logger.Warn("failure report cleanup failed", zap.Error(err))
		}
	}
	return nil
}

// terminalState applies the demotion policy: every query succeeded means
// SUCCESS, a mix means PARTIAL_FAILURE, all failed means FAILURE with the
// (possibly empty) result set still committed for auditability.
func terminalState(succeeded, failed int, cancelled bool, firstErr error) (batch.State, string) {
	switch {
	case cancelled:
		return batch.Failure, "cancelled"
	case failed == 0:
		return batch.Success, ""
	case succeeded > 0:
		return batch.PartialFailure, firstErr.Error()
	default:
		return batch.Failure, firstErr.Error()
	}
}

// runQuery scrolls one query over every project of the batch, filtering each
// hit through the dedup set before it reaches the sink. Because the filter
// insert is atomic, a page replayed after a transient failure cannot append
// the same (query, document) pair twice.
func (r *Runner) runQuery(ctx context.Context, bs *batch.BatchSearch, query string, sink *Sink) error {
	for _, prj := range bs.Projects {
		project := domain.Project(prj)
		cursor := 0
		for cursor != index.End {
			page, err := r.runPage(ctx, query, project, cursor)
			if err != nil {
				return err
			}
			for _, hit := range page.Hits {
				absent, err := r.dedup.PutIfAbsent(ctx, bs.ID, project, query, hit.Doc.ID)
				if err != nil {
					return fmt.Errorf("dedup: %w", err)
				}
				if !absent {
					metrics.DedupFilteredTotal.Inc()
					continue
				}
				sink.Append(query, hit.Doc, hit.Created)
			}
			cursor = page.NextCursor
		}
	}
	return nil
}

// runPage fetches one page with bounded exponential backoff on transient
// failures. A malformed query is never retried.
func (r *Runner) runPage(ctx context.Context, query string, project domain.Project, cursor int) (index.Page, error) {
	backoff := r.retry.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		page, err := r.exec.Run(ctx, query, project, cursor)
		if err == nil {
			return page, nil
		}
		if errors.Is(err, domain.ErrMalformedQuery) {
			return index.Page{}, err
		}
		lastErr = err

		if attempt == r.retry.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return index.Page{}, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > r.retry.MaxBackoff {
			backoff = r.retry.MaxBackoff
		}
	}

	return index.Page{}, fmt.Errorf("after %d attempts: %w", r.retry.MaxAttempts, lastErr)
}

// commit retries the whole terminal commit with the same bounded backoff.
func (r *Runner) commit(ctx context.Context, id string, state batch.State, errMsg string, results []batch.SearchResult) error {
	backoff := r.retry.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= r.retry.MaxAttempts; attempt++ {
		committed, err := r.repo.Commit(ctx, id, state, errMsg, results)
		if err == nil {
			if !committed {
				// Already terminal: a concurrent recovery path won the commit.
				r.logger.Warn("batch already committed", zap.String("batch", id))
			}
			return nil
		}
		lastErr = err

		if attempt == r.retry.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > r.retry.MaxBackoff {
			backoff = r.retry.MaxBackoff
		}
	}

	return lastErr
}

// isCancelled checks the cancellation mark between queries, never mid-query.
func (r *Runner) isCancelled(ctx context.Context, id string, logger *zap.Logger) bool {
	cancelled, err := r.repo.IsCancelled(ctx, id)
	if err != nil {
		logger.Warn("cancellation check failed", zap.Error(err))
		return false
	}
	if cancelled {
		logger.Info("batch cancelled, committing partial results")
	}
	return cancelled
}
