package postgres

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// sharedDSN points at the package-wide container; empty when none could start.
var sharedDSN string

// tables are emptied between tests.
var tables = []string{"unstake_executions", "monitor_state"}

// TestMain starts one PostgreSQL container for the whole package.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("strat"),
		postgres.WithUsername("strat"),
		postgres.WithPassword("strat"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		log.Printf("postgres container unavailable, integration tests will skip: %v", err)
		os.Exit(m.Run())
	}

	sharedDSN, err = container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Printf("postgres connection string: %v", err)
		sharedDSN = ""
	}

	code := m.Run()
	if err := container.Terminate(ctx); err != nil {
		log.Printf("terminate postgres container: %v", err)
	}
	os.Exit(code)
}

// setupTestDB connects to the shared container, applies migrations and
// empties every table. The cleanup func closes the pool.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	if sharedDSN == "" {
		t.Skip("no postgres container")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, sharedDSN, WithMaxConns(4))
	require.NoError(t, err, "failed to create pool")

	applyMigrations(t, ctx, pool)
	for _, table := range tables {
		_, err := pool.Exec(ctx, "TRUNCATE TABLE "+table)
		require.NoError(t, err, "truncate %s", table)
	}

	return pool, pool.Close
}

// applyMigrations runs internal/storage/migrations/postgres in file order.
// Every file is idempotent, so this runs before each test.
func applyMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	dir := filepath.Join(findProjectRoot(t), "internal", "storage", "migrations", "postgres")
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, files, "no migrations in %s", dir)
	sort.Strings(files)

	for _, file := range files {
		sql, err := os.ReadFile(file)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, "apply %s", filepath.Base(file))
	}
}

// findProjectRoot walks up from the working directory to go.mod.
func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

func ptr[T any](v T) *T {
	return &v
}
