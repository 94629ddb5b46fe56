package batchsearch

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/batch"
	"github.com/kailas-cloud/docdex/internal/storage/sqlite"
)

func setupRepo(t *testing.T) *Repo {
	t.Helper()

	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(store.DB())
}

func newBatch(user string) batch.BatchSearch {
	return batch.New(user, []string{"prj"}, []string{"q1", "q2"})
}

func TestSaveIsIdempotent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	bs := newBatch("alice")

	saved, err := repo.Save(ctx, bs)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = repo.Save(ctx, bs)
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestClaimWinsOnce(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	bs := newBatch("alice")

	_, err := repo.Save(ctx, bs)
	require.NoError(t, err)

	claimed, err := repo.Claim(ctx, bs.ID)
	require.NoError(t, err)
	assert.True(t, claimed)

	// redelivery loses the claim
	claimed, err = repo.Claim(ctx, bs.ID)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestClaimUnknownBatch(t *testing.T) {
	repo := setupRepo(t)

	claimed, err := repo.Claim(context.Background(), "no-such-batch")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestCommitWritesStateAndResultsAtomically(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	bs := newBatch("alice")

	_, err := repo.Save(ctx, bs)
	require.NoError(t, err)
	_, err = repo.Claim(ctx, bs.ID)
	require.NoError(t, err)

	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	results := []batch.SearchResult{
		{Query: "q1", DocumentID: "docA", RootID: "docA", DocumentPath: "/a", CreationDate: created, DocumentNumber: 1},
		{Query: "q1", DocumentID: "docB", RootID: "docA", DocumentPath: "/b", DocumentNumber: 2},
		{Query: "q2", DocumentID: "docA", RootID: "docA", DocumentPath: "/a", DocumentNumber: 1},
	}

	done, err := repo.Commit(ctx, bs.ID, batch.Success, "", results)
	require.NoError(t, err)
	assert.True(t, done)

	batches, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, batch.Success, batches[0].State)
	assert.Equal(t, 3, batches[0].ResultCount)
	assert.Equal(t, 2, batches[0].QueryCount)
	assert.Equal(t, []string{"prj"}, batches[0].Projects)
	assert.Equal(t, []string{"q1", "q2"}, batches[0].Queries)

	page, err := repo.Results(ctx, bs.ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, "q1", page[0].Query)
	assert.Equal(t, "docA", page[0].DocumentID)
	assert.Equal(t, 1, page[0].DocumentNumber)
	assert.Equal(t, created, page[0].CreationDate.UTC())
	assert.Equal(t, 2, page[1].DocumentNumber)
	assert.Equal(t, "q2", page[2].Query)
}

func TestCommitRequiresRunningState(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	bs := newBatch("alice")

	_, err := repo.Save(ctx, bs)
	require.NoError(t, err)

	// not claimed yet
	done, err := repo.Commit(ctx, bs.ID, batch.Success, "", nil)
	require.NoError(t, err)
	assert.False(t, done)

	_, err = repo.Claim(ctx, bs.ID)
	require.NoError(t, err)
	done, err = repo.Commit(ctx, bs.ID, batch.Failure, "boom", nil)
	require.NoError(t, err)
	assert.True(t, done)

	// a second commit sees a terminal batch and declines
	done, err = repo.Commit(ctx, bs.ID, batch.Success, "", nil)
	require.NoError(t, err)
	assert.False(t, done)

	batches, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, batch.Failure, batches[0].State)
	assert.Equal(t, "boom", batches[0].ErrorMessage)
}

func TestCommitRejectsNonTerminalState(t *testing.T) {
	repo := setupRepo(t)

	_, err := repo.Commit(context.Background(), "id", batch.Running, "", nil)
	require.Error(t, err)
}

func TestGetOrdersMostRecentFirst(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	older := newBatch("alice")
	older.Date = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := newBatch("alice")
	newer.Date = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	_, err := repo.Save(ctx, older)
	require.NoError(t, err)
	_, err = repo.Save(ctx, newer)
	require.NoError(t, err)
	_, err = repo.Save(ctx, newBatch("bob"))
	require.NoError(t, err)

	batches, err := repo.Get(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, newer.ID, batches[0].ID)
	assert.Equal(t, older.ID, batches[1].ID)
}

func TestResultsPagination(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	bs := newBatch("alice")

	_, err := repo.Save(ctx, bs)
	require.NoError(t, err)
	_, err = repo.Claim(ctx, bs.ID)
	require.NoError(t, err)

	results := []batch.SearchResult{
		{Query: "q1", DocumentID: "a", RootID: "a", DocumentNumber: 1},
		{Query: "q1", DocumentID: "b", RootID: "b", DocumentNumber: 2},
		{Query: "q1", DocumentID: "c", RootID: "c", DocumentNumber: 3},
	}
	_, err = repo.Commit(ctx, bs.ID, batch.Success, "", results)
	require.NoError(t, err)

	page, err := repo.Results(ctx, bs.ID, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].DocumentID)
}

func TestCancel(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	bs := newBatch("alice")

	_, err := repo.Save(ctx, bs)
	require.NoError(t, err)

	cancelled, err := repo.IsCancelled(ctx, bs.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, repo.Cancel(ctx, bs.ID))

	cancelled, err = repo.IsCancelled(ctx, bs.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)
}

func TestCancelUnknownBatch(t *testing.T) {
	repo := setupRepo(t)

	err := repo.Cancel(context.Background(), "no-such-batch")
	assert.ErrorIs(t, err, domain.ErrBatchNotFound)

	_, err = repo.IsCancelled(context.Background(), "no-such-batch")
	assert.ErrorIs(t, err, domain.ErrBatchNotFound)
}
