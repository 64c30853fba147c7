package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/kotoba/pkg/usage"
)

const userColumns = `id, email, name, image, subscription_plan, stripe_customer_id,
	stripe_subscription_id, created_at, updated_at`

// Store handles user persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new user store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner, extra ...interface{}) (*User, error) {
	var (
		user           User
		name, image    sql.NullString
		plan           string
		customerID     sql.NullString
		subscriptionID sql.NullString
	)

	dest := []interface{}{
		&user.ID, &user.Email, &name, &image, &plan, &customerID,
		&subscriptionID, &user.CreatedAt, &user.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	user.Name = name.String
	user.Image = image.String
	user.Plan = usage.NormalizePlan(plan)
	user.StripeCustomerID = customerID.String
	user.StripeSubscriptionID = subscriptionID.String
	return &user, nil
}

// GetByID retrieves a user by id
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return user, err
}

// GetByEmail retrieves a user by email
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, normalizeEmail(email)))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, err
}

// GetByStripeCustomerID retrieves the user owning a Stripe customer
func (s *Store) GetByStripeCustomerID(ctx context.Context, customerID string) (*User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE stripe_customer_id = $1`, customerID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to get user by customer: %w", err)
	}
	return user, err
}

// FindOrCreateByEmail provisions a user on first sign-in. Existing users get
// their name and avatar refreshed when the provider supplies them. The bool
// reports whether the user was created.
func (s *Store) FindOrCreateByEmail(ctx context.Context, profile Profile) (*User, bool, error) {
	email := normalizeEmail(profile.Email)
	if email == "" {
		return nil, false, ErrEmailRequired
	}

	var created bool
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, name, image)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		ON CONFLICT (email) DO UPDATE SET
			name = COALESCE(EXCLUDED.name, users.name),
			image = COALESCE(EXCLUDED.image, users.image),
			updated_at = NOW()
		RETURNING `+userColumns+`, (xmax = 0) AS created
	`, email, strings.TrimSpace(profile.Name), strings.TrimSpace(profile.Image)), &created)
	if err != nil {
		return nil, false, fmt.Errorf("failed to provision user: %w", err)
	}

	return user, created, nil
}

// ActivatePremium records a completed checkout: plan premium plus the Stripe
// customer and subscription. An empty customerID keeps the stored customer.
func (s *Store) ActivatePremium(ctx context.Context, userID, customerID, subscriptionID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET subscription_plan = 'premium',
			stripe_customer_id = COALESCE(NULLIF($2, ''), stripe_customer_id),
			stripe_subscription_id = $3,
			updated_at = NOW()
		WHERE id = $1
	`, userID, customerID, subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to activate premium: %w", err)
	}
	return requireRow(result)
}

// SetSubscription applies a subscription state change. Premium keeps the
// subscription id; any other plan clears it.
func (s *Store) SetSubscription(ctx context.Context, userID string, plan usage.Plan, subscriptionID string) error {
	if plan != usage.PlanPremium {
		plan = usage.PlanFree
		subscriptionID = ""
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET subscription_plan = $2,
			stripe_subscription_id = NULLIF($3, ''),
			updated_at = NOW()
		WHERE id = $1
	`, userID, string(plan), subscriptionID)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
