// Package annotate is the upward interface for document annotation:
// synchronous, request-scoped star and tag operations.
package annotate

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/metrics"
)

// Service handles annotation operations.
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// New creates an annotation service.
func New(repo Repository, logger *zap.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Star marks a document for a user. Returns true when the star is new.
func (s *Service) Star(ctx context.Context, project domain.Project, user, docID string) (bool, error) {
	created, err := s.repo.Star(ctx, project, user, docID)
	if err != nil {
		return false, fmt.Errorf("star: %w", err)
	}
	record("star", created)
	return created, nil
}

// Unstar removes a star. Returns true when a star was actually removed.
func (s *Service) Unstar(ctx context.Context, project domain.Project, user, docID string) (bool, error) {
	removed, err := s.repo.Unstar(ctx, project, user, docID)
	if err != nil {
		return false, fmt.Errorf("unstar: %w", err)
	}
	record("unstar", removed)
	return removed, nil
}

// StarMany stars a group of documents and returns the count of stars
// actually created.
func (s *Service) StarMany(ctx context.Context, project domain.Project, user string, docIDs []string) (int, error) {
	n, err := s.repo.StarMany(ctx, project, user, docIDs)
	if err != nil {
		return 0, fmt.Errorf("star many: %w", err)
	}
	record("star_many", n > 0)
	return n, nil
}

// UnstarMany removes a group of stars and returns the count actually removed.
func (s *Service) UnstarMany(ctx context.Context, project domain.Project, user string, docIDs []string) (int, error) {
	n, err := s.repo.UnstarMany(ctx, project, user, docIDs)
	if err != nil {
		return 0, fmt.Errorf("unstar many: %w", err)
	}
	record("unstar_many", n > 0)
	return n, nil
}

// StarredDocuments returns every document id the user starred, across all
// projects.
func (s *Service) StarredDocuments(ctx context.Context, user string) ([]string, error) {
	ids, err := s.repo.StarredDocuments(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("starred documents: %w", err)
	}
	return ids, nil
}

// StarredDocumentsIn returns the document ids the user starred in a project.
func (s *Service) StarredDocumentsIn(ctx context.Context, project domain.Project, user string) ([]string, error) {
	ids, err := s.repo.StarredDocumentsIn(ctx, project, user)
	if err != nil {
		return nil, fmt.Errorf("starred documents in %s: %w", project, err)
	}
	return ids, nil
}

// Tag adds labels to a document. Returns true when at least one label was
// newly added.
func (s *Service) Tag(ctx context.Context, project domain.Project, docID string, labels ...string) (bool, error) {
	changed, err := s.repo.Tag(ctx, project, docID, labels...)
	if err != nil {
		return false, fmt.Errorf("tag: %w", err)
	}
	record("tag", changed)
	return changed, nil
}

// Untag removes labels from a document. Returns true when at least one label
// was actually removed.
func (s *Service) Untag(ctx context.Context, project domain.Project, docID string, labels ...string) (bool, error) {
	changed, err := s.repo.Untag(ctx, project, docID, labels...)
	if err != nil {
		return false, fmt.Errorf("untag: %w", err)
	}
	record("untag", changed)
	return changed, nil
}

// DocumentsWithTags returns documents carrying all the supplied labels,
// scoped to one project.
func (s *Service) DocumentsWithTags(ctx context.Context, project domain.Project, labels ...string) ([]string, error) {
	ids, err := s.repo.DocumentsWithTags(ctx, project, labels...)
	if err != nil {
		return nil, fmt.Errorf("documents with tags: %w", err)
	}
	return ids, nil
}

// DeleteProject removes every annotation scoped to the project as one unit.
func (s *Service) DeleteProject(ctx context.Context, project domain.Project) (bool, error) {
	deleted, err := s.repo.DeleteProject(ctx, project)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	record("delete_project", deleted)
	s.logger.Info("project annotations deleted",
		zap.String("project", project.String()),
		zap.Bool("had_data", deleted),
	)
	return deleted, nil
}

func record(op string, changed bool) {
	metrics.AnnotationOpsTotal.WithLabelValues(op, strconv.FormatBool(changed)).Inc()
}
