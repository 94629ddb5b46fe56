package batchsearch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/batch"
)

// Service is the upward interface of the batch pipeline: submit a query
// list, list a user's batches, read committed results and failure causes,
// ask for cancellation.
type Service struct {
	repo     Repository
	queue    Enqueuer
	failures FailureReader
	logger   *zap.Logger
}

// NewService creates the batch search service.
func NewService(repo Repository, queue Enqueuer, logger *zap.Logger) *Service {
	return &Service{repo: repo, queue: queue, logger: logger}
}

// WithFailureReader attaches the durable failure report for reads.
func (s *Service) WithFailureReader(r FailureReader) *Service {
	s.failures = r
	return s
}

// Submit persists a new QUEUED batch and hands it to the work queue.
func (s *Service) Submit(ctx context.Context, user string, projects, queries []string) (batch.BatchSearch, error) {
	if user == "" {
		return batch.BatchSearch{}, fmt.Errorf("user is required")
	}
	if len(queries) == 0 {
		return batch.BatchSearch{}, fmt.Errorf("at least one query is required")
	}
	if len(projects) == 0 {
		return batch.BatchSearch{}, fmt.Errorf("at least one project is required")
	}

	bs := batch.New(user, projects, queries)

	saved, err := s.repo.Save(ctx, bs)
	if err != nil {
		return batch.BatchSearch{}, fmt.Errorf("save batch: %w", err)
	}
	if !saved {
		return batch.BatchSearch{}, fmt.Errorf("batch %s: %w", bs.ID, domain.ErrBatchExists)
	}

	if err := s.queue.Enqueue(ctx, bs); err != nil {
		return batch.BatchSearch{}, fmt.Errorf("enqueue batch %s: %w", bs.ID, err)
	}

	s.logger.Info("batch submitted",
		zap.String("batch", bs.ID),
		zap.String("user", user),
		zap.Int("queries", len(queries)),
		zap.Strings("projects", projects),
	)
	return bs, nil
}

// List returns the user's batches, most recent first, each with its result
// count.
func (s *Service) List(ctx context.Context, user string) ([]batch.BatchSearch, error) {
	batches, err := s.repo.Get(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	return batches, nil
}

// Results returns one page of committed results for a batch.
func (s *Service) Results(ctx context.Context, id string, offset, limit int) ([]batch.SearchResult, error) {
	results, err := s.repo.Results(ctx, id, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("batch results: %w", err)
	}
	return results, nil
}

// Failures returns the per-query failure causes recorded for a batch.
func (s *Service) Failures(ctx context.Context, id string) (map[string]string, error) {
	if s.failures == nil {
		return nil, nil
	}
	m, err := s.failures.Failures(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("batch failures: %w", err)
	}
	return m, nil
}

// Cancel marks a batch for cancellation; the runner honors the mark between
// queries.
func (s *Service) Cancel(ctx context.Context, id string) error {
	if err := s.repo.Cancel(ctx, id); err != nil {
		return fmt.Errorf("cancel batch: %w", err)
	}
	s.logger.Info("batch cancellation requested", zap.String("batch", id))
	return nil
}
