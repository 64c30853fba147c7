//go:build integration

// Package postgrestest starts a migrated PostgreSQL container for
// integration tests.
package postgrestest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/kotoba/pkg/observability"
	kpostgres "github.com/platinummonkey/kotoba/pkg/storage/postgres"
)

// SetupPostgresContainer creates a PostgreSQL test container with all
// migrations applied. The container is terminated when the test ends.
//
// Usage:
//
//	db := postgrestest.SetupPostgresContainer(t)
func SetupPostgresContainer(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()

	// Check if Docker/Podman is available
	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker/Podman not available, skipping integration tests")
	}
	defer provider.Close()

	postgresContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("kotoba_test"),
		postgres.WithUsername("kotoba"),
		postgres.WithPassword("kotoba_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))

	require.NoError(t, kpostgres.RunMigrations(ctx, db, observability.NopLogger()), "Failed to run migrations")

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close database: %v", err)
		}

		// Fresh context: the test context may already be cancelled
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := postgresContainer.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	return db
}

// CreateUser inserts a user row and returns its id
func CreateUser(t *testing.T, db *sql.DB, email string) string {
	t.Helper()

	var id string
	err := db.QueryRow(`INSERT INTO users (email) VALUES ($1) RETURNING id`, email).Scan(&id)
	require.NoError(t, err)
	return id
}
