package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_OrderedByVersion(t *testing.T) {
	ms, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, ms)

	assert.Equal(t, 1, ms[0].version)
	assert.Equal(t, "initial_schema", ms[0].name)
	assert.Contains(t, ms[0].script, "CREATE TABLE")
	for i := 1; i < len(ms); i++ {
		assert.Greater(t, ms[i].version, ms[i-1].version)
	}
}

func TestSQLStatements_SplitsAndDropsComments(t *testing.T) {
	script := `-- leading comment
CREATE TABLE a (
    id TEXT PRIMARY KEY
);

-- another comment
CREATE INDEX idx_a ON a(id);
`
	stmts := sqlStatements(script)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.Contains(t, stmts[1], "CREATE INDEX idx_a")
	for _, s := range stmts {
		assert.NotContains(t, s, "--")
	}
}

func TestSQLStatements_UnterminatedTail(t *testing.T) {
	stmts := sqlStatements("CREATE TABLE b (id TEXT)")
	require.Len(t, stmts, 1)
	assert.Equal(t, "CREATE TABLE b (id TEXT)", stmts[0])
}

func TestMigrate_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "migrate.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, s.Migrate(ctx))
}
