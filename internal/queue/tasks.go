// Package queue binds the batch pipeline to the durable asynq work queue.
// Delivery is at-least-once; idempotency is enforced downstream by the
// repository claim and the dedup filter.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docdex/internal/domain/batch"
)

// TaskBatchSearch is the task type for queued batch search jobs.
const TaskBatchSearch = "batch:search"

// BatchSearchPayload is the job descriptor carried on the queue.
type BatchSearchPayload struct {
	BatchID  string   `json:"batch_id"`
	User     string   `json:"user"`
	Projects []string `json:"projects"`
	Queries  []string `json:"queries"`
}

// NewBatchSearchTask builds the asynq task for a saved batch. The task id is
// the batch identity so a duplicate submit collapses at the queue too; the
// queue name is the deployment-owned identifier from configuration.
func NewBatchSearchTask(bs batch.BatchSearch, queueName string) (*asynq.Task, error) {
	payload, err := json.Marshal(BatchSearchPayload{
		BatchID:  bs.ID,
		User:     bs.User,
		Projects: bs.Projects,
		Queries:  bs.Queries,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	return asynq.NewTask(
		TaskBatchSearch,
		payload,
		asynq.TaskID(bs.ID),
		asynq.MaxRetry(5),
		asynq.Timeout(30*time.Minute),
		asynq.Queue(queueName),
	), nil
}

// Client enqueues batch jobs.
type Client struct {
	client    *asynq.Client
	queueName string
}

// NewClient creates an enqueue client over the given Redis connection.
func NewClient(opt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{client: asynq.NewClient(opt), queueName: queueName}
}

// Enqueue hands a batch to the work queue. A task-id conflict means the
// batch is already queued and is treated as success.
func (c *Client) Enqueue(ctx context.Context, bs batch.BatchSearch) error {
	task, err := NewBatchSearchTask(bs, c.queueName)
	if err != nil {
		return err
	}
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", bs.ID, err)
	}
	return nil
}

// Close shuts down the enqueue client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Processor runs one delivered batch to a terminal state.
type Processor interface {
	Process(ctx context.Context, bs batch.BatchSearch) error
}

// Handler adapts delivered tasks to the runner.
type Handler struct {
	runner Processor
	logger *zap.Logger
}

// NewHandler creates the task handler.
func NewHandler(runner Processor, logger *zap.Logger) *Handler {
	return &Handler{runner: runner, logger: logger}
}

// ProcessBatchSearch handles one delivered batch job. An undecodable
// payload is dropped rather than retried.
func (h *Handler) ProcessBatchSearch(ctx context.Context, t *asynq.Task) error {
	var payload BatchSearchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("undecodable batch payload", zap.Error(err))
		return fmt.Errorf("unmarshal payload: %w", asynq.SkipRetry)
	}

	bs := batch.BatchSearch{
		ID:         payload.BatchID,
		User:       payload.User,
		Projects:   payload.Projects,
		Queries:    payload.Queries,
		State:      batch.Queued,
		QueryCount: len(payload.Queries),
	}

	return h.runner.Process(ctx, bs)
}
