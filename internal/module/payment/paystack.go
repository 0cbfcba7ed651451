package payment

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jobhunter/server/internal/module/subscription"
)

// PaystackSignatureHeader carries the hex HMAC-SHA512 of the raw body, keyed by the secret key.
const PaystackSignatureHeader = "X-Paystack-Signature"

// Paystack verifies and parses Paystack webhooks.
type Paystack struct {
	secret []byte
}

// NewPaystack creates a Paystack webhook parser for the active secret key.
func NewPaystack(secretKey string) *Paystack {
	return &Paystack{secret: []byte(secretKey)}
}

// Sign returns the signature Paystack sends for body.
func (p *Paystack) Sign(body []byte) string {
	mac := hmac.New(sha512.New, p.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against body in constant time.
func (p *Paystack) Verify(body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ErrMissingSignature
	}
	got, err := hex.DecodeString(strings.ToLower(signature))
	if err != nil {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha512.New, p.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

type paystackEnvelope struct {
	Event string       `json:"event"`
	Data  paystackData `json:"data"`
}

type paystackData struct {
	Status           string           `json:"status"`
	Reference        string           `json:"reference"`
	PaidAt           *time.Time       `json:"paid_at"`
	CreatedAt        *time.Time       `json:"created_at"`
	NextPaymentDate  *time.Time       `json:"next_payment_date"`
	SubscriptionCode string           `json:"subscription_code"`
	Metadata         json.RawMessage  `json:"metadata"`
	Customer         paystackCustomer `json:"customer"`
	Plan             json.RawMessage  `json:"plan"`
	PlanObject       json.RawMessage  `json:"plan_object"`
}

type paystackCustomer struct {
	Email        string `json:"email"`
	CustomerCode string `json:"customer_code"`
}

type paystackPlan struct {
	Name     string `json:"name"`
	PlanCode string `json:"plan_code"`
	Interval string `json:"interval"`
}

// Parse decodes a verified Paystack body. Paystack events carry no id of their own, so the
// event id is the SHA-256 of the body.
func (p *Paystack) Parse(body []byte) (*Notification, error) {
	var env paystackEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if env.Event == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrInvalidPayload)
	}

	sum := sha256.Sum256(body)
	d := env.Data
	n := &Notification{
		Provider:  ProviderPaystack,
		EventID:   hex.EncodeToString(sum[:]),
		EventType: env.Event,
		Identity: Identity{
			UserID:     metadataUserID(d.Metadata),
			Reference:  d.Reference,
			CustomerID: d.Customer.CustomerCode,
			Email:      d.Customer.Email,
		},
	}

	ev := subscription.LifecycleEvent{
		Gateway:         ProviderPaystack,
		CustomerID:      d.Customer.CustomerCode,
		SubscriptionID:  d.SubscriptionCode,
		ProviderStatus:  d.Status,
		NextPaymentDate: d.NextPaymentDate,
	}

	switch env.Event {
	case "charge.success":
		plan := decodePlan(d.PlanObject)
		if plan.PlanCode == "" {
			plan = decodePlan(d.Plan)
		}
		if plan.PlanCode == "" {
			// A one-off charge outside any plan.
			return n, nil
		}
		ev.Kind = subscription.EventPaymentSucceeded
		ev.PlanCode = plan.PlanCode
		ev.OccurredAt = firstTime(d.PaidAt, d.CreatedAt)
		// Charges report the transaction status, not a subscription status.
		ev.ProviderStatus = ""
	case "subscription.create":
		ev.Kind = subscription.EventSubscriptionCreated
		ev.PlanCode = decodePlan(d.Plan).PlanCode
		ev.OccurredAt = firstTime(d.CreatedAt)
	case "subscription.disable":
		ev.Kind = subscription.EventSubscriptionDisabled
		ev.OccurredAt = firstTime(d.CreatedAt)
	case "subscription.not_renew":
		ev.Kind = subscription.EventSubscriptionNotRenewing
		ev.PlanCode = decodePlan(d.Plan).PlanCode
		ev.OccurredAt = firstTime(d.CreatedAt)
	default:
		return n, nil
	}

	n.Event = &ev
	return n, nil
}

// metadataUserID reads metadata.user_id. Paystack sends metadata as an object, an empty string
// or a number depending on how the transaction was created.
func metadataUserID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return ""
	}
	var meta struct {
		UserID any `json:"user_id"`
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return ""
	}
	switch v := meta.UserID.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

// decodePlan reads a plan object. One-off charges send an empty object or an empty string.
func decodePlan(raw json.RawMessage) paystackPlan {
	var plan paystackPlan
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return plan
	}
	_ = json.Unmarshal(raw, &plan)
	return plan
}

func firstTime(candidates ...*time.Time) time.Time {
	for _, t := range candidates {
		if t != nil && !t.IsZero() {
			return t.UTC()
		}
	}
	return time.Time{}
}
