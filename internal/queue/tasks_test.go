package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain/batch"
)

// processorMock implements Processor.
type processorMock struct {
	processFunc func(ctx context.Context, bs batch.BatchSearch) error
	processed   []batch.BatchSearch
}

func (m *processorMock) Process(ctx context.Context, bs batch.BatchSearch) error {
	m.processed = append(m.processed, bs)
	if m.processFunc != nil {
		return m.processFunc(ctx, bs)
	}
	return nil
}

func TestNewBatchSearchTask(t *testing.T) {
	bs := batch.New("alice", []string{"prj"}, []string{"q1", "q2"})

	task, err := NewBatchSearchTask(bs, "batches")
	require.NoError(t, err)
	assert.Equal(t, TaskBatchSearch, task.Type())

	var payload BatchSearchPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, bs.ID, payload.BatchID)
	assert.Equal(t, "alice", payload.User)
	assert.Equal(t, []string{"prj"}, payload.Projects)
	assert.Equal(t, []string{"q1", "q2"}, payload.Queries)
}

func TestProcessBatchSearchDeliversToRunner(t *testing.T) {
	bs := batch.New("alice", []string{"prj"}, []string{"q1"})
	task, err := NewBatchSearchTask(bs, "batches")
	require.NoError(t, err)

	runner := &processorMock{}
	h := NewHandler(runner, zap.NewNop())

	require.NoError(t, h.ProcessBatchSearch(context.Background(), task))

	require.Len(t, runner.processed, 1)
	got := runner.processed[0]
	assert.Equal(t, bs.ID, got.ID)
	assert.Equal(t, "alice", got.User)
	assert.Equal(t, batch.Queued, got.State)
	assert.Equal(t, 1, got.QueryCount)
}

func TestProcessBatchSearchPropagatesRunnerError(t *testing.T) {
	bs := batch.New("alice", []string{"prj"}, []string{"q1"})
	task, err := NewBatchSearchTask(bs, "batches")
	require.NoError(t, err)

	wantErr := errors.New("commit failed")
	runner := &processorMock{
		processFunc: func(context.Context, batch.BatchSearch) error { return wantErr },
	}
	h := NewHandler(runner, zap.NewNop())

	err = h.ProcessBatchSearch(context.Background(), task)
	assert.ErrorIs(t, err, wantErr)
}

func TestProcessBatchSearchSkipsUndecodablePayload(t *testing.T) {
	task := asynq.NewTask(TaskBatchSearch, []byte("{not json"), asynq.Timeout(time.Minute))

	runner := &processorMock{}
	h := NewHandler(runner, zap.NewNop())

	err := h.ProcessBatchSearch(context.Background(), task)
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, runner.processed)
}
