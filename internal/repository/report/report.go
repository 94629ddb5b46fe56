// Package report keeps a per-batch failure report in a durable map so a
// degraded query is never silently dropped. The backing map instance is
// selected by a deployment-owned identifier.
package report

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/docdex/internal/domain"
)

// store is the consumer interface for the failure report (ISP).
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
}

// Report records query-level failures per batch.
type Report struct {
	store   store
	mapName string
}

// New creates a failure report over the named backing map.
func New(s store, mapName string) *Report {
	return &Report{store: s, mapName: mapName}
}

// RecordFailure stores the failure cause for one query of a batch.
func (r *Report) RecordFailure(ctx context.Context, batchID, query, cause string) error {
	if err := r.store.HSet(ctx, r.key(batchID), map[string]string{query: cause}); err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// Failures returns the query failure causes recorded for a batch.
func (r *Report) Failures(ctx context.Context, batchID string) (map[string]string, error) {
	m, err := r.store.HGetAll(ctx, r.key(batchID))
	if err != nil {
		return nil, fmt.Errorf("read failures: %w", err)
	}
	return m, nil
}

// Clear drops the report for a batch.
func (r *Report) Clear(ctx context.Context, batchID string) error {
	if err := r.store.Del(ctx, r.key(batchID)); err != nil {
		return fmt.Errorf("clear report: %w", err)
	}
	return nil
}

func (r *Report) key(batchID string) string {
	return fmt.Sprintf("%s%s:%s", domain.KeyPrefix, r.mapName, batchID)
}
