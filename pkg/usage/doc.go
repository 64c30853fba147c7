// Package usage implements monthly generation quotas.
//
// A user's generations are counted per calendar month ("YYYY-MM", UTC) in the
// usage_tracking table. Free users get FreeLimit generations a month, premium
// users PremiumLimit; anything else counts as free.
//
// Checks fail closed: a ledger read error yields Allowed=false rather than
// letting requests through unmetered. Increments are a single
// INSERT ... ON CONFLICT DO UPDATE, so concurrent generations by the same user
// are all counted.
//
//	tracker := usage.NewTracker(usage.NewPostgresLedger(db))
//	result, err := tracker.Admit(ctx, user.ID, usage.NormalizePlan(user.Plan))
//	if qe, ok := usage.AsQuotaExceeded(err); ok {
//		// 403 with qe.Current / qe.Limit
//	}
package usage
