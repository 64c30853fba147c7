package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"

	"github.com/platinummonkey/kotoba/pkg/observability"
	"github.com/platinummonkey/kotoba/pkg/users"
)

// Service creates Stripe checkout and portal sessions and applies webhook
// events to user plans
type Service struct {
	config   Config
	sessions SessionCreator
	users    UserStore
	events   EventLog
	metrics  *observability.Metrics
}

// NewService creates a billing service
func NewService(config Config, sessions SessionCreator, userStore UserStore, events EventLog, metrics *observability.Metrics) *Service {
	config.AppURL = strings.TrimRight(config.AppURL, "/")
	return &Service{
		config:   config,
		sessions: sessions,
		users:    userStore,
		events:   events,
		metrics:  metrics,
	}
}

// Enabled reports whether checkout can be offered
func (s *Service) Enabled() bool {
	return s.sessions != nil && s.config.SecretKey != "" && s.config.PriceID != ""
}

// CreateCheckoutSession starts a premium subscription checkout for user and
// returns the hosted page URL
func (s *Service) CreateCheckoutSession(ctx context.Context, user *users.User) (string, error) {
	if !s.Enabled() {
		return "", ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.config.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.config.AppURL + "/dashboard?success=true"),
		CancelURL:  stripe.String(s.config.AppURL + "/pricing?canceled=true"),
	}
	params.Context = ctx
	params.AddMetadata("userId", user.ID)

	if user.HasBillingAccount() {
		params.Customer = stripe.String(user.StripeCustomerID)
	} else {
		params.CustomerEmail = stripe.String(user.Email)
	}

	sess, err := s.sessions.NewCheckoutSession(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	return sess.URL, nil
}

// CreatePortalSession opens the Stripe billing portal for a user with a
// billing account
func (s *Service) CreatePortalSession(ctx context.Context, user *users.User) (string, error) {
	if s.sessions == nil || s.config.SecretKey == "" {
		return "", ErrNotConfigured
	}
	if !user.HasBillingAccount() {
		return "", ErrNoBillingAccount
	}

	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(user.StripeCustomerID),
		ReturnURL: stripe.String(s.config.AppURL + "/dashboard"),
	}
	params.Context = ctx

	sess, err := s.sessions.NewPortalSession(params)
	if err != nil {
		return "", fmt.Errorf("failed to create portal session: %w", err)
	}
	return sess.URL, nil
}
