package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobhunter/server/internal/infra/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment: "development",
		Log:         config.LogConfig{Level: "error", Format: "json"},
		AI:          config.AIConfig{Provider: "mock"},
		Auth:        config.AuthConfig{JWTSecret: "test-secret", Issuer: "jobhunter"},
		Paystack: config.PaystackConfig{
			TestSecretKey: "sk_test_123",
			PlanCodes:     map[string]string{"monthly": "PLN_m", "yearly": "PLN_y"},
		},
		Quota: config.QuotaConfig{FreeDaily: 5, PremiumDaily: 50},
		AccessControl: config.AccessControlConfig{
			AdminEmails: []string{"admin@example.com"},
		},
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(testConfig())
	require.NoError(t, err)
	t.Cleanup(a.Stop)
	return a
}

func (a *App) serve(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func (a *App) token(t *testing.T, uid, email string) string {
	t.Helper()
	tok, _, err := a.jwt.GenerateAccessToken(uid, email)
	require.NoError(t, err)
	return tok
}

func TestApp_PublicEndpoints(t *testing.T) {
	a := newTestApp(t)

	w := a.serve(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = a.serve(t, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), Version)

	w = a.serve(t, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
	assert.Contains(t, w.Body.String(), "jobhunter_http_requests_total")
}

func TestApp_GenerationRequiresAuth(t *testing.T) {
	a := newTestApp(t)

	w := a.serve(t, http.MethodPost, "/api/v1/cv/generate_cover_letter", "", `{"job_description": "Go", "resume": "Ada"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = a.serve(t, http.MethodPost, "/api/v1/cv/generate_cover_letter", "not-a-jwt", `{"job_description": "Go", "resume": "Ada"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApp_GenerateWithMockProvider(t *testing.T) {
	a := newTestApp(t)
	tok := a.token(t, "u1", "ada@example.com")

	w := a.serve(t, http.MethodPost, "/api/v1/cv/generate_cover_letter", tok, `{"job_description": "Go", "resume": "Ada"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		CoverLetter string `json:"cover_letter"`
		Quota       struct {
			Remaining int `json:"remaining"`
			Total     int `json:"total"`
		} `json:"quota"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.CoverLetter)
	assert.Equal(t, 4, resp.Quota.Remaining)
	assert.Equal(t, 5, resp.Quota.Total)

	w = a.serve(t, http.MethodPost, "/api/v1/cv/generate", tok, `{"job_description": "Go", "resume": "Ada"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"cv_data"`)
	assert.Contains(t, w.Body.String(), `"remaining":3`)
}

func TestApp_UsersMe(t *testing.T) {
	a := newTestApp(t)

	w := a.serve(t, http.MethodGet, "/api/v1/users/me", a.token(t, "u1", "ada@example.com"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"tier":"free"`)
}

func TestApp_AdminRoutes(t *testing.T) {
	a := newTestApp(t)

	w := a.serve(t, http.MethodGet, "/api/v1/profiling/admin/all_profiles", a.token(t, "u1", "ada@example.com"), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.serve(t, http.MethodGet, "/api/v1/profiling/admin/all_profiles", a.token(t, "boss", "Admin@Example.com"), "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestApp_WebhookIsPublic(t *testing.T) {
	a := newTestApp(t)

	w := a.serve(t, http.MethodPost, "/api/v1/payments/webhook", "", `{"event": "charge.success"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_SIGNATURE")

	w = a.serve(t, http.MethodPost, "/api/v1/payments/webhook/stripe", "", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
