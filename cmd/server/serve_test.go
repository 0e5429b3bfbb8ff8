package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/trading-storefront/internal/config"
	"github.com/iliyamo/trading-storefront/internal/metrics"
	"github.com/iliyamo/trading-storefront/internal/payment"
	"github.com/iliyamo/trading-storefront/internal/queue"
	"github.com/iliyamo/trading-storefront/internal/recordstore"
)

type discardMail struct{}

func (discardMail) SendVerification(string, string, string, time.Duration) error  { return nil }
func (discardMail) SendPasswordReset(string, string, string, time.Duration) error { return nil }

func testConfig() config.Config {
	return config.Config{
		Env:               "test",
		Port:              "0",
		JWTSecret:         "access",
		JWTRefreshSecret:  "refresh",
		AccessTTL:         time.Hour,
		RefreshTTL:        24 * time.Hour,
		RefreshWrapperTTL: 24 * time.Hour,
		ResetTTL:          time.Hour,
		VerifyTTL:         time.Hour,
		BcryptCost:        12,
		Store: config.StoreConfig{
			Backend:       "memory",
			UsersTable:    "Users",
			OrdersTable:   "Orders",
			ProductsTable: "Products Info",
			PromoTable:    "Promo Codes",
		},
		FrontendURL: "http://localhost:5173",
	}
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	t.Setenv("RATE_LIMIT_AUTH_LIMIT", "2")
	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)
	return newServer(testConfig(), deps{
		store:   recordstore.NewMemoryStore(),
		gateway: payment.NewStripe("", "", time.Second),
		mail:    discardMail{},
		events:  queue.NopPublisher{},
		metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		log:     zap.NewNop(),
	})
}

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/products", http.StatusOK},
		{http.MethodGet, "/api/csrf-token", http.StatusOK},
		{http.MethodGet, "/api/auth/me", http.StatusUnauthorized},
		{http.MethodGet, "/api/orders", http.StatusUnauthorized},
		{http.MethodGet, "/api/admin/users", http.StatusUnauthorized},
		{http.MethodPost, "/api/create-checkout-session", http.StatusUnauthorized},
		{http.MethodPost, "/api/stripe-webhook", http.StatusBadRequest},
		{http.MethodGet, "/api/nope", http.StatusNotFound},
		{http.MethodGet, "/api/auth/nope", http.StatusNotFound},
		{http.MethodGet, "/api/admin/nope", http.StatusNotFound},
		{http.MethodGet, "/api", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAuthTierLimitsLogin(t *testing.T) {
	srv := newTestServer(t)

	login := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"x@example.com","password":"nope"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		return rec
	}
	assert.Equal(t, http.StatusUnauthorized, login().Code)
	assert.Equal(t, http.StatusUnauthorized, login().Code)
	rec := login()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Too many authentication attempts")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestOpenStoreRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.Store.Backend = "postgres"
	_, _, err := openStore(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)

	cfg.Store.Backend = "memory"
	store, closeStore, err := openStore(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, store)
	assert.NoError(t, closeStore())
}
