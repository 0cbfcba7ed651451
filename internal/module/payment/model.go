// Package payment ingests subscription lifecycle webhooks from Paystack and Stripe and forwards
// them to the subscription projector.
package payment

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/jobhunter/server/internal/module/subscription"
)

const (
	ProviderPaystack = "paystack"
	ProviderStripe   = "stripe"
)

// WebhookEvent is a received webhook, stored once per provider event id.
type WebhookEvent struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Provider    string         `gorm:"not null;uniqueIndex:idx_webhook_provider_event"`
	EventID     string         `gorm:"not null;uniqueIndex:idx_webhook_provider_event"`
	EventType   string         `gorm:"not null"`
	Payload     datatypes.JSON `gorm:"type:jsonb"`
	Processed   bool           `gorm:"default:false"`
	ProcessedAt *time.Time
	Error       *string
	CreatedAt   time.Time
}

// TableName returns the database table name.
func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// Identity carries every attribute a webhook offers for finding its user.
type Identity struct {
	UserID     string
	Reference  string
	CustomerID string
	Email      string
}

// Notification is a verified webhook after provider-specific parsing. Event is nil when the
// event type does not affect subscriptions.
type Notification struct {
	Provider  string
	EventID   string
	EventType string
	Identity  Identity
	Event     *subscription.LifecycleEvent
}
