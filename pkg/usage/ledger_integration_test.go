//go:build integration

package usage

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/kotoba/pkg/storage/postgres/postgrestest"
)

func TestPostgresLedger_ConcurrentIncrementsAreNotLost(t *testing.T) {
	db := postgrestest.SetupPostgresContainer(t)
	ctx := context.Background()
	userID := postgrestest.CreateUser(t, db, "race@example.com")

	ledger := NewPostgresLedger(db)
	tracker := NewTracker(ledger)

	for i := 0; i < 5; i++ {
		_, err := tracker.IncrementUsage(ctx, userID)
		require.NoError(t, err)
	}

	const concurrent = 20
	var wg sync.WaitGroup
	errs := make(chan error, concurrent)
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := tracker.IncrementUsage(ctx, userID); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	result, err := tracker.CheckUsageLimit(ctx, userID, PlanPremium)
	require.NoError(t, err)
	assert.Equal(t, 5+concurrent, result.Current)

	var rows int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM usage_tracking WHERE user_id = $1`, userID).Scan(&rows))
	assert.Equal(t, 1, rows, "one ledger row per user and period")
}

func TestPostgresLedger_TwoIncrementsFromFive(t *testing.T) {
	db := postgrestest.SetupPostgresContainer(t)
	ctx := context.Background()
	userID := postgrestest.CreateUser(t, db, "pair@example.com")
	ledger := NewPostgresLedger(db)

	_, err := db.Exec(`INSERT INTO usage_tracking (user_id, month_year, generation_count) VALUES ($1, $2, 5)`,
		userID, "2026-10")
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]int, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			count, err := ledger.Increment(ctx, userID, "2026-10")
			assert.NoError(t, err)
			results[i] = count
		}(i)
	}
	wg.Wait()

	assert.ElementsMatch(t, []int{6, 7}, results)

	count, err := ledger.Count(ctx, userID, "2026-10")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}
