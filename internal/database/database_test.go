package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nikhilbhutani/ragdesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", rebind(DialectPostgres, q))
	assert.Equal(t, q, rebind(DialectSQLite, q))
}

func TestOpenMemory_AppliesMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := OpenMemory(ctx)
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"document_tasks", "vector_stores", "chat_sessions", "chat_messages"} {
		var n int
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
		require.NoError(t, err, table)
		assert.Zero(t, n)
	}

	// a second run finds nothing to apply
	require.NoError(t, RunMigrations(ctx, db))

	var applied int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestOpen_SQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "rag.db")

	db, err := Open(ctx, config.DatabaseConfig{SQLitePath: path})
	require.NoError(t, err)
	assert.Equal(t, DialectSQLite, db.Dialect())
	require.NoError(t, db.Close())

	// reopening keeps the schema and skips applied migrations
	db, err = Open(ctx, config.DatabaseConfig{SQLitePath: path})
	require.NoError(t, err)
	defer db.Close()
	assert.FileExists(t, path)
}
