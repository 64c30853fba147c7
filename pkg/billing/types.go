package billing

import (
	"context"
	"errors"

	"github.com/platinummonkey/kotoba/pkg/usage"
	"github.com/platinummonkey/kotoba/pkg/users"
)

// MaxWebhookBytes caps the webhook body read from Stripe
const MaxWebhookBytes = 65536

var (
	// ErrNotConfigured is returned when Stripe keys or the price are missing
	ErrNotConfigured = errors.New("billing not configured")

	// ErrWebhookNotConfigured is returned when no webhook secret is set
	ErrWebhookNotConfigured = errors.New("webhook not configured")

	// ErrMissingSignature is returned for a webhook without Stripe-Signature
	ErrMissingSignature = errors.New("missing Stripe-Signature header")

	// ErrNoBillingAccount is returned when opening the portal for a user who
	// never completed checkout
	ErrNoBillingAccount = errors.New("no billing account for user")
)

// SignatureError wraps a webhook signature verification failure
type SignatureError struct {
	Err error
}

func (e *SignatureError) Error() string {
	return "signature verification failed: " + e.Err.Error()
}

func (e *SignatureError) Unwrap() error {
	return e.Err
}

// IsSignatureError checks if an error is a webhook signature error
func IsSignatureError(err error) bool {
	var se *SignatureError
	return errors.As(err, &se)
}

// Config holds checkout and webhook settings
type Config struct {
	SecretKey     string
	WebhookSecret string
	PriceID       string
	AppURL        string
}

// UserStore is the subset of users.Store billing mutates
type UserStore interface {
	GetByStripeCustomerID(ctx context.Context, customerID string) (*users.User, error)
	ActivatePremium(ctx context.Context, userID, customerID, subscriptionID string) error
	SetSubscription(ctx context.Context, userID string, plan usage.Plan, subscriptionID string) error
}

// Webhook handling results recorded in kotoba_stripe_webhook_events_total
const (
	ResultProcessed = "processed"
	ResultDuplicate = "duplicate"
	ResultIgnored   = "ignored"
	ResultFailed    = "failed"
)
