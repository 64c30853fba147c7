// Package billing connects kotoba plans to Stripe subscriptions.
//
// Checkout sessions upgrade a user to premium: the session carries the
// user's id in metadata and the checkout.session.completed webhook sets the
// plan, customer and subscription on that user. Later
// customer.subscription.updated and customer.subscription.deleted events keep
// the plan in sync with the subscription status; only active and trialing
// subscriptions are premium.
//
// Webhooks are verified with the endpoint secret. Processed event ids are
// kept in stripe_events so a redelivered event is acknowledged without being
// applied twice.
package billing
