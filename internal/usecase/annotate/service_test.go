package annotate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain"
)

// repoMock implements Repository with overridable behavior per test.
type repoMock struct {
	starFunc       func(ctx context.Context, project domain.Project, user, docID string) (bool, error)
	unstarFunc     func(ctx context.Context, project domain.Project, user, docID string) (bool, error)
	starManyFunc   func(ctx context.Context, project domain.Project, user string, docIDs []string) (int, error)
	unstarManyFunc func(ctx context.Context, project domain.Project, user string, docIDs []string) (int, error)
	starredFunc    func(ctx context.Context, user string) ([]string, error)
	starredInFunc  func(ctx context.Context, project domain.Project, user string) ([]string, error)
	tagFunc        func(ctx context.Context, project domain.Project, docID string, labels ...string) (bool, error)
	untagFunc      func(ctx context.Context, project domain.Project, docID string, labels ...string) (bool, error)
	withTagsFunc   func(ctx context.Context, project domain.Project, labels ...string) ([]string, error)
	deleteFunc     func(ctx context.Context, project domain.Project) (bool, error)
}

func (m *repoMock) Star(ctx context.Context, project domain.Project, user, docID string) (bool, error) {
	if m.starFunc != nil {
		return m.starFunc(ctx, project, user, docID)
	}
	return true, nil
}

func (m *repoMock) Unstar(ctx context.Context, project domain.Project, user, docID string) (bool, error) {
	if m.unstarFunc != nil {
		return m.unstarFunc(ctx, project, user, docID)
	}
	return true, nil
}

func (m *repoMock) StarMany(ctx context.Context, project domain.Project, user string, docIDs []string) (int, error) {
	if m.starManyFunc != nil {
		return m.starManyFunc(ctx, project, user, docIDs)
	}
	return len(docIDs), nil
}

func (m *repoMock) UnstarMany(ctx context.Context, project domain.Project, user string, docIDs []string) (int, error) {
	if m.unstarManyFunc != nil {
		return m.unstarManyFunc(ctx, project, user, docIDs)
	}
	return len(docIDs), nil
}

func (m *repoMock) StarredDocuments(ctx context.Context, user string) ([]string, error) {
	if m.starredFunc != nil {
		return m.starredFunc(ctx, user)
	}
	return nil, nil
}

func (m *repoMock) StarredDocumentsIn(ctx context.Context, project domain.Project, user string) ([]string, error) {
	if m.starredInFunc != nil {
		return m.starredInFunc(ctx, project, user)
	}
	return nil, nil
}

func (m *repoMock) Tag(ctx context.Context, project domain.Project, docID string, labels ...string) (bool, error) {
	if m.tagFunc != nil {
		return m.tagFunc(ctx, project, docID, labels...)
	}
	return true, nil
}

func (m *repoMock) Untag(ctx context.Context, project domain.Project, docID string, labels ...string) (bool, error) {
	if m.untagFunc != nil {
		return m.untagFunc(ctx, project, docID, labels...)
	}
	return true, nil
}

func (m *repoMock) DocumentsWithTags(ctx context.Context, project domain.Project, labels ...string) ([]string, error) {
	if m.withTagsFunc != nil {
		return m.withTagsFunc(ctx, project, labels...)
	}
	return nil, nil
}

func (m *repoMock) DeleteProject(ctx context.Context, project domain.Project) (bool, error) {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, project)
	}
	return true, nil
}

func TestStarDelegates(t *testing.T) {
	repo := &repoMock{
		starFunc: func(_ context.Context, project domain.Project, user, docID string) (bool, error) {
			assert.Equal(t, domain.Project("prj"), project)
			assert.Equal(t, "alice", user)
			assert.Equal(t, "doc1", docID)
			return true, nil
		},
	}
	s := New(repo, zap.NewNop())

	created, err := s.Star(context.Background(), "prj", "alice", "doc1")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestStarWrapsError(t *testing.T) {
	wantErr := errors.New("db locked")
	repo := &repoMock{
		starFunc: func(context.Context, domain.Project, string, string) (bool, error) {
			return false, wantErr
		},
	}
	s := New(repo, zap.NewNop())

	_, err := s.Star(context.Background(), "prj", "alice", "doc1")
	assert.ErrorIs(t, err, wantErr)
}

func TestStarManyReturnsChangedCount(t *testing.T) {
	repo := &repoMock{
		starManyFunc: func(_ context.Context, _ domain.Project, _ string, docIDs []string) (int, error) {
			return len(docIDs) - 1, nil
		},
	}
	s := New(repo, zap.NewNop())

	n, err := s.StarMany(context.Background(), "prj", "alice", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUnstarReportsNoop(t *testing.T) {
	repo := &repoMock{
		unstarFunc: func(context.Context, domain.Project, string, string) (bool, error) {
			return false, nil
		},
	}
	s := New(repo, zap.NewNop())

	removed, err := s.Unstar(context.Background(), "prj", "alice", "doc1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestDocumentsWithTagsDelegates(t *testing.T) {
	repo := &repoMock{
		withTagsFunc: func(_ context.Context, _ domain.Project, labels ...string) ([]string, error) {
			assert.Equal(t, []string{"red", "blue"}, labels)
			return []string{"doc1"}, nil
		},
	}
	s := New(repo, zap.NewNop())

	ids, err := s.DocumentsWithTags(context.Background(), "prj", "red", "blue")
	require.NoError(t, err)
	assert.Equal(t, []string{"doc1"}, ids)
}

func TestDeleteProjectIdempotent(t *testing.T) {
	calls := 0
	repo := &repoMock{
		deleteFunc: func(context.Context, domain.Project) (bool, error) {
			calls++
			return calls == 1, nil
		},
	}
	s := New(repo, zap.NewNop())

	deleted, err := s.DeleteProject(context.Background(), "prj")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = s.DeleteProject(context.Background(), "prj")
	require.NoError(t, err)
	assert.False(t, deleted)
}
