// Package annotation persists per-project stars and tags with idempotent
// set semantics: re-adding an existing member is a no-op reported through
// the boolean/count result, never an error.
package annotation

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kailas-cloud/docdex/internal/domain"
)

// Repo implements usecase/annotate.Repository on SQLite.
type Repo struct {
	db *sql.DB
}

// New creates an annotation repository.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Star marks a document for a user. Returns true if a new star was created,
// false if it already existed.
func (r *Repo) Star(ctx context.Context, project domain.Project, user, docID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO document_user_star (prj_id, user_id, doc_id)
		VALUES (?, ?, ?)
	`, project.String(), user, docID)
	if err != nil {
		return false, fmt.Errorf("star %s/%s: %w", project, docID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("star rows affected: %w", err)
	}
	return n > 0, nil
}

// Unstar removes a star. Returns true if a row was removed, false when none
// existed.
func (r *Repo) Unstar(ctx context.Context, project domain.Project, user, docID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM document_user_star
		WHERE prj_id = ? AND user_id = ? AND doc_id = ?
	`, project.String(), user, docID)
	if err != nil {
		return false, fmt.Errorf("unstar %s/%s: %w", project, docID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unstar rows affected: %w", err)
	}
	return n > 0, nil
}

// StarMany stars a group of documents in one transaction and returns the
// count of rows actually inserted; pre-existing stars are skipped.
func (r *Repo) StarMany(ctx context.Context, project domain.Project, user string, docIDs []string) (int, error) {
	return r.execMany(ctx, `
		INSERT OR IGNORE INTO document_user_star (prj_id, user_id, doc_id)
		VALUES (?, ?, ?)
	`, project, user, docIDs)
}

// UnstarMany removes a group of stars in one transaction and returns the
// count actually removed.
func (r *Repo) UnstarMany(ctx context.Context, project domain.Project, user string, docIDs []string) (int, error) {
	return r.execMany(ctx, `
		DELETE FROM document_user_star
		WHERE prj_id = ? AND user_id = ? AND doc_id = ?
	`, project, user, docIDs)
}

func (r *Repo) execMany(ctx context.Context, query string, project domain.Project, user string, docIDs []string) (int, error) {
	if len(docIDs) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	changed := 0
	for _, id := range docIDs {
		res, err := stmt.ExecContext(ctx, project.String(), user, id)
		if err != nil {
			return 0, fmt.Errorf("exec %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected %s: %w", id, err)
		}
		changed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return changed, nil
}

// StarredDocuments returns the ids of every document a user starred across
// all projects.
func (r *Repo) StarredDocuments(ctx context.Context, user string) ([]string, error) {
	return r.queryIDs(ctx, `
		SELECT DISTINCT doc_id FROM document_user_star
		WHERE user_id = ?
		ORDER BY doc_id
	`, user)
}

// StarredDocumentsIn returns the ids a user starred within one project.
func (r *Repo) StarredDocumentsIn(ctx context.Context, project domain.Project, user string) ([]string, error) {
	return r.queryIDs(ctx, `
		SELECT doc_id FROM document_user_star
		WHERE prj_id = ? AND user_id = ?
		ORDER BY doc_id
	`, project.String(), user)
}

// Tag adds labels to a document's tag set. Returns true if at least one
// supplied label was newly added.
func (r *Repo) Tag(ctx context.Context, project domain.Project, docID string, labels ...string) (bool, error) {
	n, err := r.tagMany(ctx, `
		INSERT OR IGNORE INTO document_tag (prj_id, doc_id, label)
		VALUES (?, ?, ?)
	`, project, docID, labels)
	return n > 0, err
}

// Untag removes labels from a document's tag set. Returns true if at least
// one supplied label was actually removed.
func (r *Repo) Untag(ctx context.Context, project domain.Project, docID string, labels ...string) (bool, error) {
	n, err := r.tagMany(ctx, `
		DELETE FROM document_tag
		WHERE prj_id = ? AND doc_id = ? AND label = ?
	`, project, docID, labels)
	return n > 0, err
}

func (r *Repo) tagMany(ctx context.Context, query string, project domain.Project, docID string, labels []string) (int, error) {
	if len(labels) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	changed := 0
	for _, label := range labels {
		res, err := stmt.ExecContext(ctx, project.String(), docID, label)
		if err != nil {
			return 0, fmt.Errorf("exec %s: %w", label, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected %s: %w", label, err)
		}
		changed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return changed, nil
}

// DocumentsWithTags returns the documents whose tag set is a superset of
// the supplied labels (AND semantics), scoped to one project.
func (r *Repo) DocumentsWithTags(ctx context.Context, project domain.Project, labels ...string) ([]string, error) {
	labels = dedupe(labels)
	if len(labels) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(labels))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(labels)+2)
	args = append(args, project.String())
	for _, l := range labels {
		args = append(args, l)
	}
	args = append(args, len(labels))

	query := fmt.Sprintf(`
		SELECT doc_id FROM document_tag
		WHERE prj_id = ? AND label IN (%s)
		GROUP BY doc_id
		HAVING COUNT(DISTINCT label) = ?
		ORDER BY doc_id
	`, placeholders)

	return r.queryIDs(ctx, query, args...)
}

// DeleteProject removes every star and tag row scoped to the project in one
// transaction. Returns true if anything was deleted; a second call on the
// same project returns false.
func (r *Repo) DeleteProject(ctx context.Context, project domain.Project) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	deleted := int64(0)
	for _, query := range []string{
		`DELETE FROM document_user_star WHERE prj_id = ?`,
		`DELETE FROM document_tag WHERE prj_id = ?`,
	} {
		res, err := tx.ExecContext(ctx, query, project.String())
		if err != nil {
			return false, fmt.Errorf("delete project %s: %w", project, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("delete project rows affected: %w", err)
		}
		deleted += n
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return deleted > 0, nil
}

func (r *Repo) queryIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return ids, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
