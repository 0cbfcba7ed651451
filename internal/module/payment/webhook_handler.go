package payment

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/jobhunter/server/internal/module/subscription"
	apperrors "github.com/jobhunter/server/internal/utils/errors"
)

const maxWebhookBytes = 1 << 20

// Webhook outcomes, as reported to metrics.
const (
	OutcomeProcessed    = "processed"
	OutcomeDuplicate    = "duplicate"
	OutcomeIgnored      = "ignored"
	OutcomeUnattributed = "unattributed"
	OutcomeFailed       = "failed"
	OutcomeRejected     = "rejected"
)

// SubscriptionApplier folds a lifecycle event into stored subscription state.
type SubscriptionApplier interface {
	ApplyEvent(ctx context.Context, ev subscription.LifecycleEvent) error
}

// Recorder receives webhook telemetry. *metrics.Metrics satisfies it.
type Recorder interface {
	RecordWebhookEvent(provider, event, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordWebhookEvent(string, string, string) {}

// WebhookHandler handles payment provider webhooks.
type WebhookHandler struct {
	paystack *Paystack
	stripe   *Stripe
	resolver *Resolver
	events   EventRepository
	subs     SubscriptionApplier
	recorder Recorder
	now      func() time.Time
	logger   *zap.Logger
}

// NewWebhookHandler creates a webhook handler. A nil stripe leaves the Stripe endpoint unmounted.
func NewWebhookHandler(
	paystack *Paystack,
	stripe *Stripe,
	resolver *Resolver,
	events EventRepository,
	subs SubscriptionApplier,
	recorder Recorder,
	logger *zap.Logger,
) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &WebhookHandler{
		paystack: paystack,
		stripe:   stripe,
		resolver: resolver,
		events:   events,
		subs:     subs,
		recorder: recorder,
		now:      time.Now,
		logger:   logger,
	}
}

// RegisterRoutes registers the public webhook routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/webhook", h.HandlePaystackWebhook)
	if h.stripe != nil {
		r.POST("/webhook/stripe", h.HandleStripeWebhook)
	}
}

// HandlePaystackWebhook handles POST /payments/webhook.
func (h *WebhookHandler) HandlePaystackWebhook(c *gin.Context) {
	signature := c.GetHeader(PaystackSignatureHeader)
	if signature == "" {
		h.reject(c, ProviderPaystack, ErrMissingSignature)
		return
	}

	payload, ok := h.readBody(c, ProviderPaystack)
	if !ok {
		return
	}

	if err := h.paystack.Verify(payload, signature); err != nil {
		h.reject(c, ProviderPaystack, err)
		return
	}

	n, err := h.paystack.Parse(payload)
	if err != nil {
		h.reject(c, ProviderPaystack, err)
		return
	}
	h.dispatch(c, n, payload)
}

// HandleStripeWebhook handles POST /payments/webhook/stripe.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	if h.stripe == nil {
		h.reject(c, ProviderStripe, ErrWebhookDisabled)
		return
	}

	payload, ok := h.readBody(c, ProviderStripe)
	if !ok {
		return
	}

	n, err := h.stripe.Parse(payload, c.GetHeader(StripeSignatureHeader))
	if err != nil {
		h.reject(c, ProviderStripe, err)
		return
	}
	h.dispatch(c, n, payload)
}

func (h *WebhookHandler) readBody(c *gin.Context, provider string) ([]byte, bool) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes))
	if err != nil {
		h.reject(c, provider, ErrInvalidPayload)
		return nil, false
	}
	return payload, true
}

// dispatch runs a verified notification through deduplication, attribution and projection.
// Every outcome past verification is acknowledged with 200 so the provider stops retrying.
func (h *WebhookHandler) dispatch(c *gin.Context, n *Notification, payload []byte) {
	ctx := c.Request.Context()
	log := h.logger.With(
		zap.String("provider", n.Provider),
		zap.String("event_id", n.EventID),
		zap.String("event_type", n.EventType),
	)

	created, err := h.events.Record(ctx, &WebhookEvent{
		Provider:  n.Provider,
		EventID:   n.EventID,
		EventType: n.EventType,
		Payload:   datatypes.JSON(payload),
	})
	if err != nil {
		// Continue processing: applying an event twice is safer than dropping it.
		log.Error("failed to record webhook event", zap.Error(err))
	} else if !created {
		log.Info("webhook event already processed")
		h.ack(c, n, OutcomeDuplicate, "already_processed", "Webhook already processed.")
		return
	}

	if n.Event == nil {
		log.Info("webhook event ignored")
		h.finish(ctx, n, nil)
		h.ack(c, n, OutcomeIgnored, "success", "Webhook received successfully.")
		return
	}

	uid, err := h.resolver.Resolve(ctx, n.Identity)
	if err != nil {
		log.Error("webhook_unattributed",
			zap.String("reference", n.Identity.Reference),
			zap.String("customer_id", n.Identity.CustomerID),
			zap.String("email", n.Identity.Email),
		)
		h.finish(ctx, n, err)
		h.ack(c, n, OutcomeUnattributed, "error", "User could not be determined from webhook.")
		return
	}

	ev := *n.Event
	ev.UserID = uid
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = h.now().UTC()
	}

	err = h.subs.ApplyEvent(ctx, ev)
	h.finish(ctx, n, err)
	switch {
	case err == nil:
		h.ack(c, n, OutcomeProcessed, "success", "Webhook received successfully.")
	case errors.Is(err, subscription.ErrUnknownPlan):
		log.Warn("webhook plan not recognized", zap.String("user_id", uid), zap.String("plan_code", ev.PlanCode))
		h.ack(c, n, OutcomeIgnored, "success", "Webhook received successfully.")
	default:
		log.Error("failed to apply webhook event", zap.String("user_id", uid), zap.Error(err))
		h.ack(c, n, OutcomeFailed, "error", "Webhook received but could not be applied.")
	}
}

func (h *WebhookHandler) finish(ctx context.Context, n *Notification, processErr error) {
	if err := h.events.MarkProcessed(context.WithoutCancel(ctx), n.Provider, n.EventID, processErr); err != nil {
		h.logger.Error("failed to mark webhook event processed",
			zap.String("provider", n.Provider),
			zap.String("event_id", n.EventID),
			zap.Error(err),
		)
	}
}

func (h *WebhookHandler) ack(c *gin.Context, n *Notification, outcome, status, message string) {
	h.recorder.RecordWebhookEvent(n.Provider, n.EventType, outcome)
	c.JSON(http.StatusOK, gin.H{"status": status, "message": message})
}

func (h *WebhookHandler) reject(c *gin.Context, provider string, err error) {
	var appErr *apperrors.AppError
	switch {
	case errors.Is(err, ErrInvalidSignature):
		appErr = apperrors.NewAppError("INVALID_SIGNATURE", "Invalid webhook signature.", http.StatusUnauthorized, err)
	case errors.Is(err, ErrMissingSignature):
		appErr = apperrors.NewAppError("MISSING_SIGNATURE", "Missing webhook signature.", http.StatusBadRequest, err)
	case errors.Is(err, ErrWebhookDisabled):
		appErr = apperrors.NotFound("webhook endpoint")
	default:
		appErr = apperrors.NewAppError("INVALID_PAYLOAD", "Invalid webhook payload.", http.StatusBadRequest, err)
	}

	h.logger.Warn("webhook rejected", zap.String("provider", provider), zap.Error(err))
	h.recorder.RecordWebhookEvent(provider, "unknown", OutcomeRejected)
	c.JSON(appErr.StatusCode, appErr.ToResponse())
}
