package migrations

import (
	"context"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"commodity-lab/internal/storage/postgres"
)

func TestLoad_OrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/010_later.sql":  {Data: []byte("SELECT 10;")},
		"pg/002_second.sql": {Data: []byte("SELECT 2;")},
		"pg/001_first.sql":  {Data: []byte("SELECT 1;")},
		"pg/003_blank.sql":  {Data: []byte("  \n")},
		"pg/README.md":      {Data: []byte("not sql")},
	}

	got, err := Load(fsys, "pg")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []int{1, 2, 10}, []int{got[0].Version, got[1].Version, got[2].Version})
	assert.Equal(t, "002_second.sql", got[1].Name)
}

func TestLoad_BadNames(t *testing.T) {
	tests := map[string]fstest.MapFS{
		"no prefix":  {"pg/init.sql": {Data: []byte("SELECT 1;")}},
		"zero":       {"pg/000_init.sql": {Data: []byte("SELECT 1;")}},
		"not number": {"pg/v1_init.sql": {Data: []byte("SELECT 1;")}},
		"duplicate": {
			"pg/001_a.sql": {Data: []byte("SELECT 1;")},
			"pg/1_b.sql":   {Data: []byte("SELECT 1;")},
		},
	}
	for name, fsys := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(fsys, "pg")
			assert.ErrorIs(t, err, ErrBadMigration)
		})
	}
}

func TestLoad_Embedded(t *testing.T) {
	pg, err := Load(PostgresFS, "postgres")
	require.NoError(t, err)
	assert.NotEmpty(t, pg)

	ch, err := Load(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.NotEmpty(t, ch)
	for _, m := range ch {
		_, err := Statements(m.SQL)
		assert.NoError(t, err, m.Name)
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	got := Pending(all, map[int]bool{1: true, 3: true})
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].Version)
	assert.Empty(t, Pending(all, map[int]bool{1: true, 2: true, 3: true}))
}

func TestStatements(t *testing.T) {
	script := `
-- header comment; with a semicolon
CREATE TABLE a (x String DEFAULT 'a;b');
INSERT INTO a VALUES ('it''s; fine'); -- trailing
CREATE TABLE "odd;name" (y UInt8)
`
	got, err := Statements(script)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "CREATE TABLE a (x String DEFAULT 'a;b')", got[0])
	assert.Equal(t, "INSERT INTO a VALUES ('it''s; fine')", got[1])
	assert.Equal(t, `CREATE TABLE "odd;name" (y UInt8)`, got[2])
}

func TestStatements_Unterminated(t *testing.T) {
	_, err := Statements("SELECT 'oops;")
	assert.ErrorIs(t, err, ErrBadMigration)
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/lab")
	require.NoError(t, err)
	assert.Equal(t, "lab", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestRunPostgresMigrations_Idempotent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := postgres.NewPool(ctx, dsn, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	all, err := Load(PostgresFS, "postgres")
	require.NoError(t, err)

	n, err := RunPostgresMigrations(ctx, pool)
	require.NoError(t, err)
	assert.Equal(t, len(all), n)

	n, err = RunPostgresMigrations(ctx, pool)
	require.NoError(t, err)
	assert.Zero(t, n)

	var recorded int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&recorded))
	assert.Equal(t, len(all), recorded)
}
