package usage

import (
	"context"
	"fmt"
	"time"
)

// Tracker enforces monthly generation quotas on top of a Ledger
type Tracker struct {
	ledger Ledger
	now    func() time.Time
}

// NewTracker creates a tracker using the wall clock
func NewTracker(ledger Ledger) *Tracker {
	return &Tracker{ledger: ledger, now: time.Now}
}

// WithClock replaces the clock used to derive the current period
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// CurrentPeriod returns the period key for the tracker's clock
func (t *Tracker) CurrentPeriod() string {
	return PeriodKey(t.now())
}

// CheckUsageLimit reports the user's usage for the current period against the
// plan ceiling. It has no side effects.
//
// When the ledger read fails the result is fail-closed (Allowed false,
// Current 0, Limit the plan ceiling) and the error is returned alongside it
// for the caller to log.
func (t *Tracker) CheckUsageLimit(ctx context.Context, userID string, plan Plan) (Result, error) {
	limit := Limit(plan)
	if userID == "" {
		return Result{Limit: limit}, ErrEmptyUserID
	}

	current, err := t.ledger.Count(ctx, userID, t.CurrentPeriod())
	if err != nil {
		return Result{Current: 0, Limit: limit, Allowed: false}, fmt.Errorf("usage check for %s: %w", userID, err)
	}

	return Result{
		Current: current,
		Limit:   limit,
		Allowed: current < limit,
	}, nil
}

// Admit checks the quota and returns a *QuotaExceededError when the user may
// not generate. The Result is returned in every case.
func (t *Tracker) Admit(ctx context.Context, userID string, plan Plan) (Result, error) {
	result, err := t.CheckUsageLimit(ctx, userID, plan)
	if err != nil {
		return result, err
	}
	if !result.Allowed {
		return result, &QuotaExceededError{Plan: plan, Current: result.Current, Limit: result.Limit}
	}
	return result, nil
}

// IncrementUsage records one generation for the user in the current period
// and returns the new count.
func (t *Tracker) IncrementUsage(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrEmptyUserID
	}
	return t.ledger.Increment(ctx, userID, t.CurrentPeriod())
}
