package subscription

import (
	"fmt"
	"strings"
	"time"
)

// EventKind names a payment lifecycle event after provider-specific parsing.
type EventKind string

const (
	EventPaymentSucceeded        EventKind = "payment_succeeded"
	EventSubscriptionCreated     EventKind = "subscription_created"
	EventSubscriptionDisabled    EventKind = "subscription_disabled"
	EventSubscriptionNotRenewing EventKind = "subscription_not_renewing"
)

// LifecycleEvent is a verified, parsed payment event attributed to a user.
type LifecycleEvent struct {
	Kind     EventKind
	Gateway  string
	UserID   string
	PlanCode string
	// OccurredAt is the payment or creation time reported by the provider.
	OccurredAt time.Time
	// NextPaymentDate is the provider's authoritative period end, when it sends one.
	NextPaymentDate *time.Time
	CustomerID      string
	SubscriptionID  string
	// ProviderStatus is the provider's own subscription status.
	ProviderStatus string
}

// Plan is a recognized billing plan.
type Plan struct {
	Name   string
	Code   string
	Tier   string
	Period time.Duration
}

const (
	monthlyPeriod = 31 * 24 * time.Hour
	yearlyPeriod  = 366 * 24 * time.Hour
)

// PlanCatalog maps provider plan codes to plans.
type PlanCatalog struct {
	byCode map[string]Plan
}

// NewPlanCatalog builds a catalog from a plan name to plan code map, such as
// {"monthly": "PLN_x", "yearly": "PLN_y"}.
func NewPlanCatalog(nameToCode map[string]string) *PlanCatalog {
	c := &PlanCatalog{byCode: make(map[string]Plan)}
	for name, code := range nameToCode {
		c.add(name, code)
	}
	return c
}

// AddCodes registers codes given as a code to plan name map, the shape Stripe price ids are
// configured in.
func (c *PlanCatalog) AddCodes(codeToName map[string]string) *PlanCatalog {
	for code, name := range codeToName {
		c.add(name, code)
	}
	return c
}

func (c *PlanCatalog) add(name, code string) {
	code = strings.TrimSpace(code)
	name = strings.ToLower(strings.TrimSpace(name))
	if code == "" || name == "" {
		return
	}
	c.byCode[code] = Plan{
		Name:   name,
		Code:   code,
		Tier:   "premium_" + name,
		Period: planPeriod(name),
	}
}

func planPeriod(name string) time.Duration {
	switch name {
	case "yearly", "annually", "annual":
		return yearlyPeriod
	default:
		return monthlyPeriod
	}
}

// Lookup finds the plan for a provider plan code.
func (c *PlanCatalog) Lookup(code string) (Plan, bool) {
	p, ok := c.byCode[strings.TrimSpace(code)]
	return p, ok
}

// Projector folds lifecycle events into subscription state. It is pure.
type Projector struct {
	plans *PlanCatalog
}

// NewProjector creates a projector over a plan catalog.
func NewProjector(plans *PlanCatalog) *Projector {
	return &Projector{plans: plans}
}

// Apply returns the subscription that results from ev. current is left untouched.
func (p *Projector) Apply(current Subscription, ev LifecycleEvent) (Subscription, error) {
	switch ev.Kind {
	case EventPaymentSucceeded:
		plan, ok := p.plans.Lookup(ev.PlanCode)
		if !ok {
			return current, fmt.Errorf("%w: %q", ErrUnknownPlan, ev.PlanCode)
		}
		next := current
		next.Tier = plan.Tier
		next.Status = StatusActive
		next.PlanCode = ptr(plan.Code)
		next.PaymentGateway = optional(ev.Gateway, current.PaymentGateway)
		next.CustomerID = optional(ev.CustomerID, current.CustomerID)
		next.SubscriptionID = optional(ev.SubscriptionID, current.SubscriptionID)
		start := ev.OccurredAt.UTC()
		end := start.Add(plan.Period)
		next.CurrentPeriodStartsAt = &start
		next.CurrentPeriodEndsAt = &end
		next.CancellationEffectiveDate = nil
		return next, nil

	case EventSubscriptionCreated:
		plan, ok := p.plans.Lookup(ev.PlanCode)
		if !ok {
			return current, fmt.Errorf("%w: %q", ErrUnknownPlan, ev.PlanCode)
		}
		status := Status(strings.ToLower(strings.TrimSpace(ev.ProviderStatus)))
		if status == "" {
			status = StatusActive
		}
		start := ev.OccurredAt.UTC()
		next := Subscription{
			Tier:                  plan.Tier,
			Status:                status,
			PaymentGateway:        optional(ev.Gateway, current.PaymentGateway),
			PlanCode:              ptr(plan.Code),
			CustomerID:            optional(ev.CustomerID, current.CustomerID),
			SubscriptionID:        optional(ev.SubscriptionID, current.SubscriptionID),
			CurrentPeriodStartsAt: &start,
		}
		if ev.NextPaymentDate != nil {
			end := ev.NextPaymentDate.UTC()
			next.CurrentPeriodEndsAt = &end
		} else {
			end := start.Add(plan.Period)
			next.CurrentPeriodEndsAt = &end
		}
		return next, nil

	case EventSubscriptionDisabled:
		return Free(), nil

	case EventSubscriptionNotRenewing:
		switch Status(strings.ToLower(strings.TrimSpace(ev.ProviderStatus))) {
		case StatusCancelled, StatusCompleted:
			return Free(), nil
		}
		next := current
		next.Status = StatusNonRenewing
		if ev.NextPaymentDate != nil {
			end := ev.NextPaymentDate.UTC()
			next.CurrentPeriodEndsAt = &end
			next.CancellationEffectiveDate = ptr(end)
		}
		return next, nil

	default:
		return current, fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Kind)
	}
}

// RevertsToFree reports whether applying ev always yields the free subscription.
func RevertsToFree(ev LifecycleEvent) bool {
	switch ev.Kind {
	case EventSubscriptionDisabled:
		return true
	case EventSubscriptionNotRenewing:
		s := Status(strings.ToLower(strings.TrimSpace(ev.ProviderStatus)))
		return s == StatusCancelled || s == StatusCompleted
	default:
		return false
	}
}

func optional(v string, fallback *string) *string {
	if v = strings.TrimSpace(v); v != "" {
		return &v
	}
	return fallback
}
