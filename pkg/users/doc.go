// Package users stores kotoba accounts.
//
// Users are created on first sign-in (FindOrCreateByEmail) with the free
// plan. Billing webhooks are the only writers of the plan and Stripe
// references (ActivatePremium, SetSubscription).
package users
