package usage

import (
	"fmt"
	"strings"
	"time"
)

// Plan is a subscription tier
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
)

// Monthly generation ceilings
const (
	FreeLimit    = 10
	PremiumLimit = 1000
)

// NormalizePlan maps a stored plan value to a Plan. Missing and unknown
// values are free.
func NormalizePlan(plan string) Plan {
	if Plan(strings.ToLower(strings.TrimSpace(plan))) == PlanPremium {
		return PlanPremium
	}
	return PlanFree
}

// Limit returns the monthly generation ceiling for a plan. Anything other
// than premium gets the free ceiling.
func Limit(plan Plan) int {
	if plan == PlanPremium {
		return PremiumLimit
	}
	return FreeLimit
}

// PeriodKey returns the billing period containing t, as "YYYY-MM" in UTC
func PeriodKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// Result is the outcome of a usage check
type Result struct {
	Current int  `json:"current"`
	Limit   int  `json:"limit"`
	Allowed bool `json:"allowed"`
}

// Remaining returns max(0, Limit-Current)
func (r Result) Remaining() int {
	if r.Current >= r.Limit {
		return 0
	}
	return r.Limit - r.Current
}

// QuotaExceededError is returned when a user has used up the current period
type QuotaExceededError struct {
	Plan    Plan
	Current int
	Limit   int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly generation limit reached (%d/%d on %s plan)", e.Current, e.Limit, e.Plan)
}

// IsQuotaExceeded checks if an error is a quota exceeded error
func IsQuotaExceeded(err error) bool {
	_, ok := AsQuotaExceeded(err)
	return ok
}
