// Package batchsearch is the durable store of batch searches and their
// committed results. Terminal state and result rows are written in one
// transaction so a reader never observes a half-committed batch.
package batchsearch

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kailas-cloud/docdex/internal/domain"
	"github.com/kailas-cloud/docdex/internal/domain/batch"
)

// Repo implements the batch search persistence contract on SQLite.
type Repo struct {
	db *sql.DB
}

// New creates a batch search repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Save persists a new batch definition. Returns false when a batch with the
// same identity already exists, which makes redelivered submissions no-ops.
func (r *Repo) Save(ctx context.Context, bs batch.BatchSearch) (bool, error) {
	projects, err := json.Marshal(bs.Projects)
	if err != nil {
		return false, fmt.Errorf("marshal projects: %w", err)
	}
	queries, err := json.Marshal(bs.Queries)
	if err != nil {
		return false, fmt.Errorf("marshal queries: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO batch_search
			(uuid, user_id, projects, queries, state, batch_date, query_count, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, bs.ID, bs.User, string(projects), string(queries),
		bs.State.String(), bs.Date, bs.QueryCount, bs.ErrorMessage)
	if err != nil {
		return false, fmt.Errorf("save batch %s: %w", bs.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save rows affected: %w", err)
	}
	return n > 0, nil
}

// Claim atomically transitions a batch from QUEUED to RUNNING. Exactly one
// caller wins; a redelivered job sees false and must not run the batch again.
func (r *Repo) Claim(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE batch_search SET state = ?
		WHERE uuid = ? AND state = ?
	`, batch.Running.String(), id, batch.Queued.String())
	if err != nil {
		return false, fmt.Errorf("claim batch %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim rows affected: %w", err)
	}
	return n > 0, nil
}

// Commit transitions a RUNNING batch to the given terminal state and writes
// all its result rows in a single transaction. Returns false without writing
// anything when the batch is not RUNNING anymore.
func (r *Repo) Commit(ctx context.Context, id string, state batch.State, errMsg string, results []batch.SearchResult) (bool, error) {
	if !state.Terminal() {
		return false, fmt.Errorf("commit batch %s: state %s is not terminal", id, state)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx, `
		UPDATE batch_search SET state = ?, error_message = ?
		WHERE uuid = ? AND state = ?
	`, state.String(), errMsg, id, batch.Running.String())
	if err != nil {
		return false, fmt.Errorf("commit batch %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("commit rows affected: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO batch_search_result
			(batch_uuid, query, doc_id, root_id, doc_path, creation_date, doc_nb)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("prepare results: %w", err)
	}
	defer stmt.Close()

	for _, sr := range results {
		if _, err := stmt.ExecContext(ctx,
			id, sr.Query, sr.DocumentID, sr.RootID, sr.DocumentPath,
			sr.CreationDate, sr.DocumentNumber,
		); err != nil {
			return false, fmt.Errorf("insert result %s/%s: %w", sr.Query, sr.DocumentID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}
	return true, nil
}

// Get returns all batches owned by a user, most recent first, each carrying
// its committed result count. Full results are served by Results separately
// to bound payload size.
func (r *Repo) Get(ctx context.Context, user string) ([]batch.BatchSearch, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT b.uuid, b.user_id, b.projects, b.queries, b.state,
		       b.batch_date, b.query_count, b.error_message,
		       COUNT(r.doc_id)
		FROM batch_search b
		LEFT JOIN batch_search_result r ON r.batch_uuid = b.uuid
		WHERE b.user_id = ?
		GROUP BY b.uuid
		ORDER BY b.batch_date DESC, b.uuid DESC
	`, user)
	if err != nil {
		return nil, fmt.Errorf("get batches for %s: %w", user, err)
	}
	defer rows.Close()

	var batches []batch.BatchSearch
	for rows.Next() {
		var bs batch.BatchSearch
		var projects, queries, state string
		if err := rows.Scan(
			&bs.ID, &bs.User, &projects, &queries, &state,
			&bs.Date, &bs.QueryCount, &bs.ErrorMessage, &bs.ResultCount,
		); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		bs.State = batch.State(state)
		if err := json.Unmarshal([]byte(projects), &bs.Projects); err != nil {
			return nil, fmt.Errorf("unmarshal projects for %s: %w", bs.ID, err)
		}
		if err := json.Unmarshal([]byte(queries), &bs.Queries); err != nil {
			return nil, fmt.Errorf("unmarshal queries for %s: %w", bs.ID, err)
		}
		batches = append(batches, bs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return batches, nil
}

// Results returns one page of committed results for a batch, ordered by
// query submission position and discovery rank.
func (r *Repo) Results(ctx context.Context, id string, offset, limit int) ([]batch.SearchResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT query, doc_id, root_id, doc_path, creation_date, doc_nb
		FROM batch_search_result
		WHERE batch_uuid = ?
		ORDER BY query, doc_nb
		LIMIT ? OFFSET ?
	`, id, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("results for %s: %w", id, err)
	}
	defer rows.Close()

	var results []batch.SearchResult
	for rows.Next() {
		var sr batch.SearchResult
		var created sql.NullTime
		if err := rows.Scan(
			&sr.Query, &sr.DocumentID, &sr.RootID, &sr.DocumentPath,
			&created, &sr.DocumentNumber,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if created.Valid {
			sr.CreationDate = created.Time
		}
		results = append(results, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return results, nil
}

// Cancel marks a batch for cancellation. The runner checks the mark between
// queries, never mid-query.
func (r *Repo) Cancel(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE batch_search SET cancel_asked = 1 WHERE uuid = ?
	`, id)
	if err != nil {
		return fmt.Errorf("cancel batch %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("cancel rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

// IsCancelled reports whether a batch was marked for cancellation.
func (r *Repo) IsCancelled(ctx context.Context, id string) (bool, error) {
	var asked bool
	err := r.db.QueryRowContext(ctx, `
		SELECT cancel_asked FROM batch_search WHERE uuid = ?
	`, id).Scan(&asked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, domain.ErrBatchNotFound
	}
	if err != nil {
		return false, fmt.Errorf("is cancelled %s: %w", id, err)
	}
	return asked, nil
}
