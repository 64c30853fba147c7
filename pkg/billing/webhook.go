package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/platinummonkey/kotoba/pkg/observability"
	"github.com/platinummonkey/kotoba/pkg/usage"
	"github.com/platinummonkey/kotoba/pkg/users"
)

// HandleWebhook verifies and applies a Stripe event. Redelivered events are
// acknowledged without being applied again. A returned error that is not
// ErrWebhookNotConfigured, ErrMissingSignature or a *SignatureError means the
// event should be retried by Stripe.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.config.WebhookSecret == "" {
		return ErrWebhookNotConfigured
	}
	if signature == "" {
		return ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return &SignatureError{Err: err}
	}

	eventType := string(event.Type)
	logger := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"stripe_event_id":   event.ID,
		"stripe_event_type": eventType,
	})

	if s.events != nil {
		seen, err := s.events.Seen(ctx, event.ID)
		if err != nil {
			s.metrics.RecordWebhookEvent(eventType, ResultFailed)
			return err
		}
		if seen {
			logger.Info("stripe event already processed")
			s.metrics.RecordWebhookEvent(eventType, ResultDuplicate)
			return nil
		}
	}

	result, err := s.apply(ctx, logger, event)
	if err != nil {
		logger.WithError(err).Error("failed to process stripe event")
		s.metrics.RecordWebhookEvent(eventType, ResultFailed)
		return err
	}

	if s.events != nil {
		if err := s.events.Record(ctx, event.ID, eventType); err != nil {
			logger.WithError(err).Warn("failed to record processed stripe event")
		}
	}

	s.metrics.RecordWebhookEvent(eventType, result)
	return nil
}

func (s *Service) apply(ctx context.Context, logger *observability.Logger, event stripe.Event) (string, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return "", fmt.Errorf("invalid checkout session payload: %w", err)
		}
		return s.checkoutCompleted(ctx, logger, &sess)

	case stripe.EventTypeCustomerSubscriptionUpdated, stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return "", fmt.Errorf("invalid subscription payload: %w", err)
		}
		return s.subscriptionChanged(ctx, logger, &sub)

	default:
		logger.Debug("ignoring stripe event")
		return ResultIgnored, nil
	}
}

func (s *Service) checkoutCompleted(ctx context.Context, logger *observability.Logger, sess *stripe.CheckoutSession) (string, error) {
	userID := sess.Metadata["userId"]
	if userID == "" || sess.Subscription == nil || sess.Subscription.ID == "" {
		logger.Warn("checkout session without user or subscription")
		return ResultIgnored, nil
	}

	customerID := ""
	if sess.Customer != nil {
		customerID = sess.Customer.ID
	}

	err := s.users.ActivatePremium(ctx, userID, customerID, sess.Subscription.ID)
	if errors.Is(err, users.ErrNotFound) {
		logger.WithField("user_id", userID).Warn("checkout completed for unknown user")
		return ResultIgnored, nil
	}
	if err != nil {
		return "", err
	}

	logger.WithField("user_id", userID).Info("user upgraded to premium")
	return ResultProcessed, nil
}

func (s *Service) subscriptionChanged(ctx context.Context, logger *observability.Logger, sub *stripe.Subscription) (string, error) {
	if sub.Customer == nil || sub.Customer.ID == "" {
		logger.Warn("subscription event without customer")
		return ResultIgnored, nil
	}

	user, err := s.users.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if errors.Is(err, users.ErrNotFound) {
		logger.WithField("stripe_customer_id", sub.Customer.ID).Info("subscription event for unknown customer")
		return ResultIgnored, nil
	}
	if err != nil {
		return "", err
	}

	plan := PlanForStatus(sub.Status)
	if err := s.users.SetSubscription(ctx, user.ID, plan, sub.ID); err != nil {
		return "", err
	}

	logger.WithFields(map[string]interface{}{
		"user_id":             user.ID,
		"subscription_status": sub.Status,
		"plan":                plan,
	}).Info("subscription plan updated")
	return ResultProcessed, nil
}

// PlanForStatus maps a Stripe subscription status to a plan. Only active and
// trialing subscriptions are premium.
func PlanForStatus(status stripe.SubscriptionStatus) usage.Plan {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return usage.PlanPremium
	default:
		return usage.PlanFree
	}
}
