package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryLedger is an in-memory Ledger for tests
type memoryLedger struct {
	mu      sync.Mutex
	counts  map[string]int
	readErr error
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{counts: make(map[string]int)}
}

func (m *memoryLedger) Count(ctx context.Context, userID, period string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return 0, m.readErr
	}
	return m.counts[userID+"/"+period], nil
}

func (m *memoryLedger) Increment(ctx context.Context, userID, period string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[userID+"/"+period]++
	return m.counts[userID+"/"+period], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCheckUsageLimit_NoEntryIsZero(t *testing.T) {
	tracker := NewTracker(newMemoryLedger())

	result, err := tracker.CheckUsageLimit(context.Background(), "user-1", PlanFree)

	require.NoError(t, err)
	assert.Equal(t, Result{Current: 0, Limit: 10, Allowed: true}, result)
}

func TestCheckUsageLimit_CountsSequentialIncrements(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(newMemoryLedger())

	for n := 0; n <= FreeLimit; n++ {
		result, err := tracker.CheckUsageLimit(ctx, "user-1", PlanFree)
		require.NoError(t, err)
		assert.Equal(t, n, result.Current)
		assert.Equal(t, n < FreeLimit, result.Allowed)

		if n < FreeLimit {
			count, err := tracker.IncrementUsage(ctx, "user-1")
			require.NoError(t, err)
			assert.Equal(t, n+1, count)
		}
	}

	result, err := tracker.CheckUsageLimit(ctx, "user-1", PlanPremium)
	require.NoError(t, err)
	assert.Equal(t, Result{Current: 10, Limit: 1000, Allowed: true}, result)
}

func TestCheckUsageLimit_FailsClosed(t *testing.T) {
	ledger := newMemoryLedger()
	ledger.readErr = errors.New("connection reset by peer")
	tracker := NewTracker(ledger)

	result, err := tracker.CheckUsageLimit(context.Background(), "user-1", PlanPremium)

	require.Error(t, err)
	assert.Equal(t, Result{Current: 0, Limit: 1000, Allowed: false}, result)
}

func TestCheckUsageLimit_RequiresUser(t *testing.T) {
	tracker := NewTracker(newMemoryLedger())

	result, err := tracker.CheckUsageLimit(context.Background(), "", PlanFree)

	assert.ErrorIs(t, err, ErrEmptyUserID)
	assert.False(t, result.Allowed)

	_, err = tracker.IncrementUsage(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyUserID)
}

func TestAdmit_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(newMemoryLedger())
	for i := 0; i < FreeLimit; i++ {
		_, err := tracker.IncrementUsage(ctx, "user-1")
		require.NoError(t, err)
	}

	result, err := tracker.Admit(ctx, "user-1", PlanFree)

	qe, ok := AsQuotaExceeded(err)
	require.True(t, ok)
	assert.Equal(t, 10, qe.Current)
	assert.Equal(t, 10, qe.Limit)
	assert.False(t, result.Allowed)
}

func TestTracker_PeriodRollover(t *testing.T) {
	ctx := context.Background()
	ledger := newMemoryLedger()
	tracker := NewTracker(ledger).WithClock(fixedClock(time.Date(2026, time.January, 31, 23, 0, 0, 0, time.UTC)))

	for i := 0; i < FreeLimit; i++ {
		_, err := tracker.IncrementUsage(ctx, "user-1")
		require.NoError(t, err)
	}
	result, err := tracker.CheckUsageLimit(ctx, "user-1", PlanFree)
	require.NoError(t, err)
	assert.False(t, result.Allowed)

	tracker.WithClock(fixedClock(time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2026-02", tracker.CurrentPeriod())

	result, err = tracker.CheckUsageLimit(ctx, "user-1", PlanFree)
	require.NoError(t, err)
	assert.Equal(t, Result{Current: 0, Limit: 10, Allowed: true}, result)
}
