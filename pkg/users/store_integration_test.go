//go:build integration

package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/kotoba/pkg/storage/postgres/postgrestest"
	"github.com/platinummonkey/kotoba/pkg/usage"
)

func TestStore_Lifecycle(t *testing.T) {
	db := postgrestest.SetupPostgresContainer(t)
	store := NewStore(db)
	ctx := context.Background()

	user, created, err := store.FindOrCreateByEmail(ctx, Profile{Email: "Kenji@example.com", Name: "Kenji"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "kenji@example.com", user.Email)
	assert.Equal(t, usage.PlanFree, user.Plan)

	again, created, err := store.FindOrCreateByEmail(ctx, Profile{Email: "kenji@example.com", Image: "https://img.example.com/k.png"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Kenji", again.Name, "blank provider name must not erase the stored one")
	assert.Equal(t, "https://img.example.com/k.png", again.Image)

	require.NoError(t, store.ActivatePremium(ctx, user.ID, "cus_123", "sub_123"))
	byCustomer, err := store.GetByStripeCustomerID(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, usage.PlanPremium, byCustomer.Plan)
	assert.Equal(t, "sub_123", byCustomer.StripeSubscriptionID)

	require.NoError(t, store.SetSubscription(ctx, user.ID, usage.PlanFree, "sub_123"))
	downgraded, err := store.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, usage.PlanFree, downgraded.Plan)
	assert.Empty(t, downgraded.StripeSubscriptionID)
	assert.Equal(t, "cus_123", downgraded.StripeCustomerID)

	require.NoError(t, store.ActivatePremium(ctx, user.ID, "", "sub_456"))
	resubscribed, err := store.GetByStripeCustomerID(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, usage.PlanPremium, resubscribed.Plan)
	assert.Equal(t, "sub_456", resubscribed.StripeSubscriptionID)
}
