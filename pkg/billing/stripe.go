package billing

import (
	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
)

// SessionCreator creates hosted Stripe pages
type SessionCreator interface {
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// StripeSessions calls the Stripe API with its own key instead of the
// package-level stripe.Key
type StripeSessions struct {
	checkout session.Client
	portal   portal.Client
}

// NewStripeSessions creates a SessionCreator using the default API backend
func NewStripeSessions(secretKey string) *StripeSessions {
	backend := stripe.GetBackend(stripe.APIBackend)
	return &StripeSessions{
		checkout: session.Client{B: backend, Key: secretKey},
		portal:   portal.Client{B: backend, Key: secretKey},
	}
}

// NewCheckoutSession implements SessionCreator
func (s *StripeSessions) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return s.checkout.New(params)
}

// NewPortalSession implements SessionCreator
func (s *StripeSessions) NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	return s.portal.New(params)
}
