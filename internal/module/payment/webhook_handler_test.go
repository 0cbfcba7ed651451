package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jobhunter/server/internal/module/subscription"
)

const testPaystackSecret = "sk_test_secret"

func init() {
	gin.SetMode(gin.TestMode)
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorder) RecordWebhookEvent(provider, event, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, provider+"/"+outcome)
}

func (r *outcomeRecorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outcomes) == 0 {
		return ""
	}
	return r.outcomes[len(r.outcomes)-1]
}

type webhookFixture struct {
	router   *gin.Engine
	users    *subscription.MemoryRepository
	subs     *subscription.Service
	events   *MemoryRepository
	recorder *outcomeRecorder
	logs     *observer.ObservedLogs
}

func newWebhookFixture(t *testing.T, withStripe bool) *webhookFixture {
	t.Helper()

	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	catalog := subscription.NewPlanCatalog(map[string]string{"monthly": "PLN_m", "yearly": "PLN_y"}).
		AddCodes(map[string]string{"price_m": "monthly", "price_y": "yearly"})
	users := subscription.NewMemoryRepository()
	subs := subscription.NewService(users, subscription.NewProjector(catalog), subscription.AccessPolicy{}, logger)

	var stripe *Stripe
	if withStripe {
		stripe = NewStripe(testStripeSecret)
	}

	f := &webhookFixture{
		users:    users,
		subs:     subs,
		events:   NewMemoryRepository(),
		recorder: &outcomeRecorder{},
		logs:     logs,
	}
	h := NewWebhookHandler(NewPaystack(testPaystackSecret), stripe, NewResolver(subs, logger), f.events, subs, f.recorder, logger)

	f.router = gin.New()
	h.RegisterRoutes(f.router.Group("/api/v1/payments"))
	return f
}

func (f *webhookFixture) postPaystack(body string, sign bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sign {
		req.Header.Set(PaystackSignatureHeader, NewPaystack(testPaystackSecret).Sign([]byte(body)))
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *webhookFixture) subscription(t *testing.T, uid string) *subscription.Subscription {
	t.Helper()
	sub, err := f.subs.GetSubscription(context.Background(), uid)
	require.NoError(t, err)
	return sub
}

func ackStatus(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["status"]
}

func TestWebhook_PaystackChargeSuccess(t *testing.T) {
	f := newWebhookFixture(t, false)

	w := f.postPaystack(chargeSuccess, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", ackStatus(t, w))
	assert.Equal(t, "paystack/processed", f.recorder.last())

	sub := f.subscription(t, "u1")
	require.NotNil(t, sub)
	assert.Equal(t, "premium_monthly", sub.Tier)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	paidAt := time.Date(2024, 3, 14, 12, 0, 0, 0, time.UTC)
	require.NotNil(t, sub.CurrentPeriodEndsAt)
	assert.Equal(t, paidAt.Add(31*24*time.Hour), *sub.CurrentPeriodEndsAt)
	require.NotNil(t, sub.CustomerID)
	assert.Equal(t, "CUS_1", *sub.CustomerID)

	n, err := NewPaystack(testPaystackSecret).Parse([]byte(chargeSuccess))
	require.NoError(t, err)
	stored, ok := f.events.Get(ProviderPaystack, n.EventID)
	require.True(t, ok)
	assert.True(t, stored.Processed)
	assert.Nil(t, stored.Error)
}

func TestWebhook_PaystackDuplicateIsNotReapplied(t *testing.T) {
	f := newWebhookFixture(t, false)
	require.Equal(t, http.StatusOK, f.postPaystack(chargeSuccess, true).Code)

	// The user downgrades in between; a redelivery must not restore premium.
	require.NoError(t, f.users.ClearToFree(context.Background(), "u1"))

	w := f.postPaystack(chargeSuccess, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "already_processed", ackStatus(t, w))
	assert.Equal(t, "paystack/duplicate", f.recorder.last())
	assert.Equal(t, subscription.TierFree, f.subscription(t, "u1").Tier)
}

func TestWebhook_PaystackRejects(t *testing.T) {
	f := newWebhookFixture(t, false)

	tests := []struct {
		name       string
		build      func() *http.Request
		wantStatus int
		wantCode   string
	}{
		{
			name: "missing signature",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(chargeSuccess))
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "MISSING_SIGNATURE",
		},
		{
			name: "wrong signature",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader(chargeSuccess))
				req.Header.Set(PaystackSignatureHeader, NewPaystack("sk_other").Sign([]byte(chargeSuccess)))
				return req
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "INVALID_SIGNATURE",
		},
		{
			name: "signed garbage",
			build: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook", strings.NewReader("garbage"))
				req.Header.Set(PaystackSignatureHeader, NewPaystack(testPaystackSecret).Sign([]byte("garbage")))
				return req
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_PAYLOAD",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			f.router.ServeHTTP(w, tt.build())

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantCode)
			assert.Equal(t, "paystack/rejected", f.recorder.last())
		})
	}
	assert.Nil(t, f.subscription(t, "u1"))
}

func TestWebhook_PaystackUnattributed(t *testing.T) {
	f := newWebhookFixture(t, false)
	body := `{"event": "subscription.create", "data": {
		"status": "active", "subscription_code": "SUB_9",
		"plan": {"plan_code": "PLN_m"},
		"customer": {"email": "stranger@example.com", "customer_code": "CUS_9"}}}`

	w := f.postPaystack(body, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "error", ackStatus(t, w))
	assert.Equal(t, "paystack/unattributed", f.recorder.last())

	entries := f.logs.FilterMessage("webhook_unattributed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "CUS_9", entries[0].ContextMap()["customer_id"])
}

func TestWebhook_PaystackDisableResolvesByCustomerCode(t *testing.T) {
	f := newWebhookFixture(t, false)
	require.Equal(t, http.StatusOK, f.postPaystack(chargeSuccess, true).Code)
	require.Equal(t, "premium_monthly", f.subscription(t, "u1").Tier)

	body := `{"event": "subscription.disable", "data": {
		"status": "complete", "subscription_code": "SUB_1",
		"customer": {"email": "", "customer_code": "CUS_1"}}}`
	w := f.postPaystack(body, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paystack/processed", f.recorder.last())

	sub := f.subscription(t, "u1")
	assert.Equal(t, subscription.TierFree, sub.Tier)
	assert.Nil(t, sub.CustomerID)
	assert.Nil(t, sub.CurrentPeriodEndsAt)
}

func TestWebhook_PaystackUnknownPlanLeavesStateAlone(t *testing.T) {
	f := newWebhookFixture(t, false)
	body := strings.Replace(chargeSuccess, "PLN_m", "PLN_unknown", 1)

	w := f.postPaystack(body, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paystack/ignored", f.recorder.last())
	assert.Nil(t, f.subscription(t, "u1"))
	assert.Equal(t, 1, f.logs.FilterMessage("webhook plan not recognized").Len())
}

func TestWebhook_PaystackIgnoredEvent(t *testing.T) {
	f := newWebhookFixture(t, false)

	w := f.postPaystack(`{"event": "transfer.success", "data": {"reference": "jh_u1_m_1"}}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", ackStatus(t, w))
	assert.Equal(t, "paystack/ignored", f.recorder.last())
}

func TestWebhook_Stripe(t *testing.T) {
	t.Run("invoice paid", func(t *testing.T) {
		f := newWebhookFixture(t, true)
		payload := stripeEvent("evt_1", "invoice.paid", paidInvoice)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook/stripe", strings.NewReader(string(payload)))
		req.Header.Set(StripeSignatureHeader, signStripe(payload, testStripeSecret, time.Now()))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "stripe/processed", f.recorder.last())
		sub := f.subscription(t, "u1")
		require.NotNil(t, sub)
		assert.Equal(t, "premium_monthly", sub.Tier)
		require.NotNil(t, sub.PaymentGateway)
		assert.Equal(t, ProviderStripe, *sub.PaymentGateway)

		_, ok := f.events.Get(ProviderStripe, "evt_1")
		assert.True(t, ok)
	})

	t.Run("bad signature", func(t *testing.T) {
		f := newWebhookFixture(t, true)
		payload := stripeEvent("evt_1", "invoice.paid", paidInvoice)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook/stripe", strings.NewReader(string(payload)))
		req.Header.Set(StripeSignatureHeader, signStripe(payload, "whsec_other", time.Now()))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, f.subscription(t, "u1"))
	})

	t.Run("not mounted without secret", func(t *testing.T) {
		f := newWebhookFixture(t, false)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/webhook/stripe", strings.NewReader("{}"))
		w := httptest.NewRecorder()
		f.router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
