package users

import (
	"errors"
	"time"

	"github.com/platinummonkey/kotoba/pkg/usage"
)

// ErrNotFound is returned when no user matches the lookup
var ErrNotFound = errors.New("user not found")

// ErrEmailRequired is returned when provisioning a user without an email
var ErrEmailRequired = errors.New("email is required")

// User is a kotoba account. Plan and the Stripe references are only changed
// by billing webhooks.
type User struct {
	ID                   string     `json:"id"`
	Email                string     `json:"email"`
	Name                 string     `json:"name,omitempty"`
	Image                string     `json:"image,omitempty"`
	Plan                 usage.Plan `json:"plan"`
	StripeCustomerID     string     `json:"-"`
	StripeSubscriptionID string     `json:"-"`
	CreatedAt            time.Time  `json:"createdAt"`
	UpdatedAt            time.Time  `json:"updatedAt"`
}

// HasBillingAccount reports whether the user has a Stripe customer
func (u *User) HasBillingAccount() bool {
	return u.StripeCustomerID != ""
}

// Profile is the identity returned by a sign-in provider
type Profile struct {
	Email string
	Name  string
	Image string
}
