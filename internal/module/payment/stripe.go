package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/jobhunter/server/internal/module/subscription"
)

// StripeSignatureHeader carries Stripe's timestamped webhook signature.
const StripeSignatureHeader = "Stripe-Signature"

// Stripe verifies and parses Stripe webhooks.
type Stripe struct {
	webhookSecret string
	tolerance     time.Duration
}

// NewStripe creates a Stripe webhook parser.
func NewStripe(webhookSecret string) *Stripe {
	return &Stripe{webhookSecret: webhookSecret, tolerance: webhook.DefaultTolerance}
}

// Parse verifies signature and decodes the event. Events signed for another API version are
// accepted because only stable fields are read.
func (s *Stripe) Parse(payload []byte, signature string) (*Notification, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, ErrMissingSignature
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{
			Tolerance:                s.tolerance,
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		if isStripeSignatureError(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	n := &Notification{
		Provider:  ProviderStripe,
		EventID:   event.ID,
		EventType: string(event.Type),
	}

	switch event.Type {
	case "invoice.paid":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("%w: invoice: %w", ErrInvalidPayload, err)
		}
		return invoicePaid(n, &inv), nil

	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: subscription: %w", ErrInvalidPayload, err)
		}
		return subscriptionChanged(n, &sub), nil

	default:
		return n, nil
	}
}

func isStripeSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrTooOld)
}

func invoicePaid(n *Notification, inv *stripe.Invoice) *Notification {
	n.Identity = Identity{
		UserID: inv.Metadata["user_id"],
		Email:  inv.CustomerEmail,
	}
	if inv.Customer != nil {
		n.Identity.CustomerID = inv.Customer.ID
		if n.Identity.Email == "" {
			n.Identity.Email = inv.Customer.Email
		}
	}

	var line *stripe.InvoiceLineItem
	if inv.Lines != nil && len(inv.Lines.Data) > 0 {
		line = inv.Lines.Data[0]
	}
	if line == nil || line.Price == nil {
		// Not a subscription invoice.
		return n
	}
	if n.Identity.UserID == "" {
		n.Identity.UserID = line.Metadata["user_id"]
	}

	paidAt := inv.Created
	if inv.StatusTransitions != nil && inv.StatusTransitions.PaidAt > 0 {
		paidAt = inv.StatusTransitions.PaidAt
	}
	ev := subscription.LifecycleEvent{
		Kind:       subscription.EventPaymentSucceeded,
		Gateway:    ProviderStripe,
		PlanCode:   line.Price.ID,
		OccurredAt: unixTime(paidAt),
		CustomerID: n.Identity.CustomerID,
	}
	if inv.Subscription != nil {
		ev.SubscriptionID = inv.Subscription.ID
	}
	if line.Period != nil && line.Period.End > 0 {
		end := unixTime(line.Period.End)
		ev.NextPaymentDate = &end
	}
	n.Event = &ev
	return n
}

func subscriptionChanged(n *Notification, sub *stripe.Subscription) *Notification {
	n.Identity = Identity{UserID: sub.Metadata["user_id"]}
	if sub.Customer != nil {
		n.Identity.CustomerID = sub.Customer.ID
		n.Identity.Email = sub.Customer.Email
	}

	ev := subscription.LifecycleEvent{
		Gateway:        ProviderStripe,
		CustomerID:     n.Identity.CustomerID,
		SubscriptionID: sub.ID,
		ProviderStatus: stripeStatus(sub.Status),
		OccurredAt:     unixTime(sub.Created),
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		ev.PlanCode = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		end := unixTime(sub.CurrentPeriodEnd)
		ev.NextPaymentDate = &end
	}

	switch n.EventType {
	case "customer.subscription.created":
		ev.Kind = subscription.EventSubscriptionCreated
	case "customer.subscription.deleted":
		ev.Kind = subscription.EventSubscriptionDisabled
	case "customer.subscription.updated":
		if !sub.CancelAtPeriodEnd {
			return n
		}
		ev.Kind = subscription.EventSubscriptionNotRenewing
	default:
		return n
	}
	n.Event = &ev
	return n
}

// stripeStatus maps Stripe subscription statuses onto the statuses clients already know.
func stripeStatus(s stripe.SubscriptionStatus) string {
	switch s {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return string(subscription.StatusActive)
	case stripe.SubscriptionStatusCanceled:
		return string(subscription.StatusCancelled)
	case stripe.SubscriptionStatusIncompleteExpired:
		return string(subscription.StatusCompleted)
	case "":
		return ""
	default:
		return string(subscription.StatusAttention)
	}
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
