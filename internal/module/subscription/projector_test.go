package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog() *PlanCatalog {
	return NewPlanCatalog(map[string]string{
		"monthly": "PLN_month",
		"yearly":  "PLN_year",
	}).AddCodes(map[string]string{"price_123": "monthly"})
}

func billedSubscription() Subscription {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return Subscription{
		Tier:                      "premium_monthly",
		Status:                    StatusActive,
		PaymentGateway:            ptr("paystack"),
		PlanCode:                  ptr("PLN_month"),
		CustomerID:                ptr("CUS_1"),
		SubscriptionID:            ptr("SUB_1"),
		CurrentPeriodStartsAt:     &start,
		CurrentPeriodEndsAt:       &end,
		CancellationEffectiveDate: &end,
	}
}

func assertFree(t *testing.T, s Subscription) {
	t.Helper()
	assert.Equal(t, TierFree, s.Tier)
	assert.Equal(t, StatusActive, s.Status)
	assert.Nil(t, s.PaymentGateway)
	assert.Nil(t, s.PlanCode)
	assert.Nil(t, s.CustomerID)
	assert.Nil(t, s.SubscriptionID)
	assert.Nil(t, s.CurrentPeriodStartsAt)
	assert.Nil(t, s.CurrentPeriodEndsAt)
	assert.Nil(t, s.CancellationEffectiveDate)
}

func TestPlanCatalog(t *testing.T) {
	c := testCatalog()

	p, ok := c.Lookup("PLN_month")
	require.True(t, ok)
	assert.Equal(t, "premium_monthly", p.Tier)
	assert.Equal(t, 31*24*time.Hour, p.Period)

	p, ok = c.Lookup("PLN_year")
	require.True(t, ok)
	assert.Equal(t, "premium_yearly", p.Tier)
	assert.Equal(t, 366*24*time.Hour, p.Period)

	p, ok = c.Lookup("price_123")
	require.True(t, ok)
	assert.Equal(t, "premium_monthly", p.Tier)

	_, ok = c.Lookup("PLN_unknown")
	assert.False(t, ok)
}

func TestProjector_PaymentSucceeded(t *testing.T) {
	p := NewProjector(testCatalog())
	paidAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := p.Apply(Free(), LifecycleEvent{
		Kind:           EventPaymentSucceeded,
		Gateway:        "paystack",
		UserID:         "u1",
		PlanCode:       "PLN_year",
		OccurredAt:     paidAt,
		CustomerID:     "CUS_9",
		SubscriptionID: "AUTH_9",
	})
	require.NoError(t, err)

	assert.Equal(t, "premium_yearly", next.Tier)
	assert.Equal(t, StatusActive, next.Status)
	require.NotNil(t, next.CurrentPeriodStartsAt)
	assert.Equal(t, paidAt, *next.CurrentPeriodStartsAt)
	require.NotNil(t, next.CurrentPeriodEndsAt)
	assert.Equal(t, paidAt.Add(366*24*time.Hour), *next.CurrentPeriodEndsAt)
	assert.Equal(t, "CUS_9", *next.CustomerID)
	assert.Equal(t, "AUTH_9", *next.SubscriptionID)
}

func TestProjector_PaymentSucceededUnknownPlan(t *testing.T) {
	p := NewProjector(testCatalog())
	current := billedSubscription()

	next, err := p.Apply(current, LifecycleEvent{Kind: EventPaymentSucceeded, PlanCode: "PLN_other"})
	assert.ErrorIs(t, err, ErrUnknownPlan)
	assert.Equal(t, current, next)
}

func TestProjector_SubscriptionCreatedUsesNextPaymentDate(t *testing.T) {
	p := NewProjector(testCatalog())
	created := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	nextPayment := time.Date(2025, 3, 29, 0, 0, 0, 0, time.UTC)

	next, err := p.Apply(Free(), LifecycleEvent{
		Kind:            EventSubscriptionCreated,
		Gateway:         "paystack",
		PlanCode:        "PLN_month",
		OccurredAt:      created,
		NextPaymentDate: &nextPayment,
		CustomerID:      "CUS_1",
		SubscriptionID:  "SUB_1",
		ProviderStatus:  "active",
	})
	require.NoError(t, err)

	assert.Equal(t, "premium_monthly", next.Tier)
	assert.Equal(t, StatusActive, next.Status)
	assert.Equal(t, nextPayment, *next.CurrentPeriodEndsAt)
	assert.NotEqual(t, created.Add(31*24*time.Hour), *next.CurrentPeriodEndsAt)
	assert.Equal(t, created, *next.CurrentPeriodStartsAt)
	assert.Equal(t, "SUB_1", *next.SubscriptionID)
}

func TestProjector_SubscriptionCreatedDefaultsStatus(t *testing.T) {
	p := NewProjector(testCatalog())

	next, err := p.Apply(Free(), LifecycleEvent{
		Kind:       EventSubscriptionCreated,
		PlanCode:   "PLN_month",
		OccurredAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, next.Status)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), *next.CurrentPeriodEndsAt)
}

func TestProjector_DisabledClearsBillingFields(t *testing.T) {
	p := NewProjector(testCatalog())

	next, err := p.Apply(billedSubscription(), LifecycleEvent{Kind: EventSubscriptionDisabled})
	require.NoError(t, err)
	assertFree(t, next)
}

func TestProjector_NotRenewing(t *testing.T) {
	p := NewProjector(testCatalog())
	nextPayment := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		providerStatus string
		wantFree       bool
	}{
		{"still active", "non-renewing", false},
		{"attention", "attention", false},
		{"already cancelled", "cancelled", true},
		{"complete", "complete", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := LifecycleEvent{
				Kind:            EventSubscriptionNotRenewing,
				NextPaymentDate: &nextPayment,
				ProviderStatus:  tt.providerStatus,
			}
			next, err := p.Apply(billedSubscription(), ev)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFree, RevertsToFree(ev))

			if tt.wantFree {
				assertFree(t, next)
				return
			}
			assert.Equal(t, "premium_monthly", next.Tier)
			assert.Equal(t, StatusNonRenewing, next.Status)
			assert.Equal(t, nextPayment, *next.CancellationEffectiveDate)
			assert.Equal(t, nextPayment, *next.CurrentPeriodEndsAt)
		})
	}
}

func TestProjector_UnknownEvent(t *testing.T) {
	p := NewProjector(testCatalog())
	_, err := p.Apply(Free(), LifecycleEvent{Kind: "refund"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestSubscription_IsPremiumActive(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		sub  Subscription
		want bool
	}{
		{"free", Free(), false},
		{"empty tier", Subscription{Status: StatusActive}, false},
		{"premium no end", Subscription{Tier: "premium_monthly", Status: StatusActive}, true},
		{"premium future end", Subscription{Tier: "premium_monthly", Status: StatusActive, CurrentPeriodEndsAt: &future}, true},
		{"premium expired", Subscription{Tier: "premium_monthly", Status: StatusActive, CurrentPeriodEndsAt: &past}, false},
		{"non-renewing in period", Subscription{Tier: "pro", Status: StatusNonRenewing, CurrentPeriodEndsAt: &future}, true},
		{"attention", Subscription{Tier: "pro", Status: StatusAttention}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.IsPremiumActive(now))
		})
	}
}
