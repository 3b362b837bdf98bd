package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container for testing and applies the
// embedded migrations. Returns a cleanup function that must be called after
// tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	runMigrations(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// runMigrations applies the whale_transactions schema. The migrations package
// cannot be imported here without an import cycle, so the schema is inlined.
func runMigrations(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS whale_transactions (
			tx_hash      TEXT PRIMARY KEY,
			network      TEXT NOT NULL,
			token        TEXT NOT NULL,
			amount_usd   NUMERIC NOT NULL,
			from_address TEXT NOT NULL,
			to_address   TEXT,
			action       TEXT NOT NULL,
			synthetic    BOOLEAN NOT NULL DEFAULT FALSE,
			observed_at  BIGINT NOT NULL
		)
	`)
	require.NoError(t, err, "failed to create whale_transactions")
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
