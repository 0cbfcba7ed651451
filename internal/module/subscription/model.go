// Package subscription stores users and their subscription state, and folds payment lifecycle
// events into that state.
package subscription

import (
	"strings"
	"time"

	"github.com/lib/pq"
)

// Status is the subscription status as reported to clients.
type Status string

const (
	StatusActive      Status = "active"
	StatusNonRenewing Status = "non-renewing"
	StatusAttention   Status = "attention"
	StatusCancelled   Status = "cancelled"
	StatusCompleted   Status = "complete"
)

const (
	TierFree = "free"

	RoleAdmin = "admin"
)

// Subscription is a user's billing state. It lives inside the users row.
type Subscription struct {
	Tier                      string     `json:"tier" gorm:"column:tier;not null;default:free"`
	Status                    Status     `json:"status" gorm:"column:status;not null;default:active"`
	PaymentGateway            *string    `json:"payment_gateway,omitempty" gorm:"column:payment_gateway"`
	PlanCode                  *string    `json:"plan_code,omitempty" gorm:"column:plan_code"`
	CustomerID                *string    `json:"customer_id,omitempty" gorm:"column:customer_id;index"`
	SubscriptionID            *string    `json:"subscription_id,omitempty" gorm:"column:subscription_id"`
	CurrentPeriodStartsAt     *time.Time `json:"current_period_starts_at,omitempty" gorm:"column:current_period_starts_at"`
	CurrentPeriodEndsAt       *time.Time `json:"current_period_ends_at,omitempty" gorm:"column:current_period_ends_at"`
	CancellationEffectiveDate *time.Time `json:"cancellation_effective_date,omitempty" gorm:"column:cancellation_effective_date"`
}

// Free returns the default subscription every user starts with.
func Free() Subscription {
	return Subscription{Tier: TierFree, Status: StatusActive}
}

// IsFree reports whether the tier label is free or empty.
func (s Subscription) IsFree() bool {
	t := strings.ToLower(strings.TrimSpace(s.Tier))
	return t == "" || t == TierFree
}

// IsPremiumActive reports whether the subscription grants premium features at now: a non-free
// tier, an active or non-renewing status and a period that has not ended.
func (s Subscription) IsPremiumActive(now time.Time) bool {
	if s.IsFree() {
		return false
	}
	if s.Status != StatusActive && s.Status != StatusNonRenewing {
		return false
	}
	return s.CurrentPeriodEndsAt == nil || s.CurrentPeriodEndsAt.After(now)
}

// columns returns every subscription column, nils included, for single-row updates.
func (s Subscription) columns() map[string]any {
	return map[string]any{
		"subscription_tier":                        s.Tier,
		"subscription_status":                      string(s.Status),
		"subscription_payment_gateway":             s.PaymentGateway,
		"subscription_plan_code":                   s.PlanCode,
		"subscription_customer_id":                 s.CustomerID,
		"subscription_subscription_id":             s.SubscriptionID,
		"subscription_current_period_starts_at":    s.CurrentPeriodStartsAt,
		"subscription_current_period_ends_at":      s.CurrentPeriodEndsAt,
		"subscription_cancellation_effective_date": s.CancellationEffectiveDate,
	}
}

// User is an authenticated account. The ID is the identity provider's subject.
type User struct {
	ID           string         `json:"uid" gorm:"primaryKey;type:varchar(128)"`
	Email        string         `json:"email" gorm:"index"`
	Roles        pq.StringArray `json:"roles,omitempty" gorm:"type:text[]"`
	Subscription Subscription   `json:"subscription" gorm:"embedded;embeddedPrefix:subscription_"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// TableName returns the database table name.
func (User) TableName() string {
	return "users"
}

// HasRole reports whether the user carries role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T {
	return &v
}
