package annotate

import (
	"context"

	"github.com/kailas-cloud/docdex/internal/domain"
)

// Repository is the persistence contract for stars and tags. Every mutation
// reports its effect through booleans or counts so at-least-once callers
// can repeat any operation safely.
type Repository interface {
	Star(ctx context.Context, project domain.Project, user, docID string) (bool, error)
	Unstar(ctx context.Context, project domain.Project, user, docID string) (bool, error)
	StarMany(ctx context.Context, project domain.Project, user string, docIDs []string) (int, error)
	UnstarMany(ctx context.Context, project domain.Project, user string, docIDs []string) (int, error)
	StarredDocuments(ctx context.Context, user string) ([]string, error)
	StarredDocumentsIn(ctx context.Context, project domain.Project, user string) ([]string, error)
	Tag(ctx context.Context, project domain.Project, docID string, labels ...string) (bool, error)
	Untag(ctx context.Context, project domain.Project, docID string, labels ...string) (bool, error)
	DocumentsWithTags(ctx context.Context, project domain.Project, labels ...string) ([]string, error)
	DeleteProject(ctx context.Context, project domain.Project) (bool, error)
}
