package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreCreatesSchema(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "dir", "test.db"))
	require.NoError(t, err)
	defer store.Close()

	for _, table := range []string{"document_user_star", "document_tag", "batch_search", "batch_search_result"} {
		var name string
		err := store.DB().QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestNewStoreRequiresPath(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// reopening an already-migrated database applies nothing
	store, err = NewStore(path)
	require.NoError(t, err)
	defer store.Close()

	var version int
	require.NoError(t, store.DB().QueryRow(
		`SELECT MAX(version) FROM schema_migrations`,
	).Scan(&version))
	assert.Equal(t, 1, version)
}

func TestCascadeDeleteOfResults(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer store.Close()

	db := store.DB()
	_, err = db.Exec(`
		INSERT INTO batch_search (uuid, user_id, projects, queries, state, batch_date, query_count, error_message)
		VALUES ('b1', 'alice', '["prj"]', '["q"]', 'SUCCESS', CURRENT_TIMESTAMP, 1, '')
	`)
	require.NoError(t, err)
	_, err = db.Exec(`
		INSERT INTO batch_search_result (batch_uuid, query, doc_id, root_id, doc_path, doc_nb)
		VALUES ('b1', 'q', 'doc1', 'doc1', '/a', 1)
	`)
	require.NoError(t, err)

	_, err = db.Exec(`DELETE FROM batch_search WHERE uuid = 'b1'`)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM batch_search_result`).Scan(&n))
	assert.Equal(t, 0, n)
}
