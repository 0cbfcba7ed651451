package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(repo Repository) *Service {
	return NewService(repo, NewProjector(testCatalog()), AccessPolicy{
		AdminEmails:  []string{"Admin@Example.com"},
		AdminUserIDs: []string{"root"},
	}, nil)
}

func TestService_MeCreatesFreeUser(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()

	u, err := svc.Me(ctx, "u1", "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, TierFree, u.Subscription.Tier)
	assert.Equal(t, StatusActive, u.Subscription.Status)

	sub, err := svc.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, sub)
	assert.Equal(t, TierFree, sub.Tier)
}

func TestService_GetSubscriptionUnknownUser(t *testing.T) {
	svc := newTestService(NewMemoryRepository())

	sub, err := svc.GetSubscription(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestService_ApplyEventLifecycle(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()
	paidAt := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, svc.ApplyEvent(ctx, LifecycleEvent{
		Kind:       EventPaymentSucceeded,
		Gateway:    "paystack",
		UserID:     "u1",
		PlanCode:   "PLN_month",
		OccurredAt: paidAt,
		CustomerID: "CUS_1",
	}))

	sub, err := svc.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "premium_monthly", sub.Tier)

	id, err := svc.ResolveCustomer(ctx, "CUS_1")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	require.NoError(t, svc.ApplyEvent(ctx, LifecycleEvent{Kind: EventSubscriptionDisabled, UserID: "u1"}))

	sub, err = svc.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assertFree(t, *sub)

	_, err = svc.ResolveCustomer(ctx, "CUS_1")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_ApplyEventErrors(t *testing.T) {
	svc := newTestService(NewMemoryRepository())
	ctx := context.Background()

	assert.ErrorIs(t, svc.ApplyEvent(ctx, LifecycleEvent{Kind: EventPaymentSucceeded}), ErrNoUserID)
	assert.ErrorIs(t, svc.ApplyEvent(ctx, LifecycleEvent{Kind: EventPaymentSucceeded, UserID: "u1", PlanCode: "x"}), ErrUnknownPlan)

	sub, err := svc.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, sub)
}

func TestService_IsAdmin(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(repo)
	ctx := context.Background()

	assert.True(t, svc.IsAdmin(ctx, "root", ""))
	assert.True(t, svc.IsAdmin(ctx, "x", "admin@example.com"))
	assert.False(t, svc.IsAdmin(ctx, "u1", "u1@example.com"))

	_, err := repo.GetOrCreate(ctx, "u2", "u2@example.com")
	require.NoError(t, err)
	repo.SetRoles("u2", RoleAdmin)
	assert.True(t, svc.IsAdmin(ctx, "u2", "u2@example.com"))
}

func TestMemoryRepository_ResolveByEmail(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	_, err := repo.GetOrCreate(ctx, "u1", "Person@Example.com")
	require.NoError(t, err)

	id, err := repo.FindUserIDByEmail(ctx, "person@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = repo.FindUserIDByEmail(ctx, "other@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
