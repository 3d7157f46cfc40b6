package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSQLiteAppliesOnce(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "m.db"))
	require.NoError(t, err)
	defer db.Close()

	fsys := fstest.MapFS{
		"m/0001_a.up.sql":   {Data: []byte("CREATE TABLE a (id TEXT); CREATE TABLE b (id TEXT);")},
		"m/0001_a.down.sql": {Data: []byte("DROP TABLE a;")},
		"s/0001_seed.sql":   {Data: []byte("INSERT INTO a (id) VALUES ('x');")},
	}
	opts := Options{MigrationsDir: "m", SeedsDir: "s", WithSeeds: true}

	ctx := context.Background()
	require.NoError(t, SQLite(ctx, db, fsys, opts, zap.NewNop()))

	opts.WithSeeds = false
	require.NoError(t, SQLite(ctx, db, fsys, opts, zap.NewNop()))

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)

	var rows int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM a`).Scan(&rows))
	assert.Equal(t, 1, rows)
}

func TestListSQLFilesMissingDir(t *testing.T) {
	files, err := listSQLFiles(fstest.MapFS{}, "nada", ".sql")
	require.NoError(t, err)
	assert.Empty(t, files)
}
