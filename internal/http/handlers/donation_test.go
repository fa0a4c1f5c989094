package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"donato/backend/internal/auth"
	"donato/backend/internal/config"
	"donato/backend/internal/donation"
	"donato/backend/internal/donation/donationtest"
	"donato/backend/internal/http/middleware"
	"donato/backend/internal/integrations/negdi/negditest"
	"donato/backend/internal/logging"
	"donato/backend/internal/rate"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type testApp struct {
	gateway *negditest.Gateway
	store   *donationtest.Store
	counter *donationtest.Counter
	pending *donation.PendingStore
	router  http.Handler
	cookie  *http.Cookie
}

func newTestApp(t *testing.T, perMinute int) *testApp {
	t.Helper()
	cfg := &config.Config{
		Env:            config.EnvTest,
		BaseURL:        "https://donate.example",
		SessionSecret:  "test-secret",
		SessionTTL:     time.Hour,
		RequestTimeout: 5 * time.Second,
		Negdi:          config.NegdiConfig{Currency: "USD"},
		Contribution: config.ContributionConfig{
			Min:           decimal.NewFromInt(1),
			Max:           decimal.NewFromInt(10000),
			RatePerMinute: perMinute,
		},
	}
	gw := negditest.New(t)
	store := donationtest.NewStore()
	counter := donationtest.NewCounter()
	pending := donation.NewPendingStore(cfg.SessionTTL)
	svc := donation.NewService(donation.Options{
		Gateway:      gw.Client(),
		Verifier:     gw.Verifier(),
		Store:        store,
		OrderNumbers: donation.NewOrderNumbers(counter, time.UTC),
		Currency:     cfg.Negdi.Currency,
		Logger:       logging.Discard(),
	})
	h := New(Deps{
		Service: svc,
		Pending: pending,
		Tokens:  store,
		Limiter: rate.NewPerMinute(perMinute),
	}, cfg, logging.Discard())

	r := chi.NewRouter()
	r.Use(middleware.Session(middleware.SessionOptions{Secret: cfg.SessionSecret, TTL: cfg.SessionTTL, Logger: logging.Discard()}))
	h.Mount(r)
	return &testApp{gateway: gw, store: store, counter: counter, pending: pending, router: r}
}

func (a *testApp) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if a.cookie != nil {
		req.AddCookie(a.cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			a.cookie = c
		}
	}
	return rec
}

func (a *testApp) contribute(t *testing.T, email, amount string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"email": {email}, "contribution_amount": {amount}}
	req := httptest.NewRequest(http.MethodPost, "/contribute", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(t, req)
}

func (a *testApp) confirm(t *testing.T, query string) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(t, httptest.NewRequest(http.MethodGet, "/payment_confirmation"+query, nil))
}

// TestDonationFlowApproved verifies the redirect, confirmation page and token lookup behavior.
func TestDonationFlowApproved(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, 10)

	rec := app.contribute(t, "donor@example.com", "10.00")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); !strings.HasPrefix(loc, negditest.CheckoutURL) {
		t.Fatalf("unexpected redirect: %s", loc)
	}
	if got := app.gateway.LastCreate()["returnurl"]; got != "https://donate.example/payment_confirmation" {
		t.Fatalf("unexpected returnurl: %v", got)
	}
	if app.pending.Len() != 1 {
		t.Fatalf("pending order should be stored for the session")
	}

	rec = app.confirm(t, "?tranid=T-100&checkid=C-100")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "data:image/png;base64,") || strings.Contains(body, "ZgotmplZ") {
		t.Fatalf("confirmation should embed the qr image")
	}
	rows := app.store.All()
	if len(rows) != 1 {
		t.Fatalf("expected one contribution, got %d", len(rows))
	}
	c := rows[0]
	if c.Email != "donor@example.com" || !strings.Contains(body, c.Token) {
		t.Fatalf("unexpected contribution or page: %#v", c)
	}
	if _, ok := app.pending.Get(""); ok || app.pending.Len() != 0 {
		t.Fatalf("pending order should be consumed after approval")
	}

	rec = app.do(t, httptest.NewRequest(http.MethodGet, "/tokens/"+c.Token, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("token lookup: %d", rec.Code)
	}
	var status tokenStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Valid || status.Amount != "10.00" || status.OrderNumber != c.OrderNumber {
		t.Fatalf("unexpected token status: %#v", status)
	}
}

// TestContributeValidation verifies invalid submissions never reach the gateway.
func TestContributeValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		email  string
		amount string
	}{
		{"missing_amount", "donor@example.com", ""},
		{"not_a_number", "donor@example.com", "abc"},
		{"zero", "donor@example.com", "0"},
		{"negative", "donor@example.com", "-5"},
		{"too_precise", "donor@example.com", "10.001"},
		{"above_max", "donor@example.com", "20000"},
		{"below_min", "donor@example.com", "0.50"},
		{"bad_email", "not-an-email", "10"},
		{"missing_email", "", "10"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			app := newTestApp(t, 10)
			rec := app.contribute(t, tc.email, tc.amount)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rec.Code)
			}
			if create, _ := app.gateway.Calls(); create != 0 {
				t.Fatalf("gateway should not be called")
			}
		})
	}
}

// TestPaymentConfirmationErrors verifies the error view and status for each failure.
func TestPaymentConfirmationErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		query      string
		setup      func(app *testApp)
		wantStatus int
		wantText   string
	}{
		{
			name:       "missing_params",
			query:      "?tranid=T-1",
			wantStatus: http.StatusBadRequest,
			wantText:   "Missing transaction information from payment gateway.",
		},
		{
			name:       "rejected",
			query:      "?tranid=T-1&checkid=C-1",
			setup:      func(app *testApp) { app.gateway.SetInquiryStatus("Declined") },
			wantStatus: http.StatusOK,
			wantText:   "Payment was not completed",
		},
		{
			name:       "invalid_signature",
			query:      "?tranid=T-1&checkid=C-1",
			setup:      func(app *testApp) { app.gateway.SetBadSignature(true) },
			wantStatus: http.StatusBadGateway,
			wantText:   "Invalid signature from payment gateway.",
		},
		{
			name:       "gateway_error",
			query:      "?tranid=T-1&checkid=C-1",
			setup:      func(app *testApp) { app.gateway.SetFailStatus(http.StatusInternalServerError) },
			wantStatus: http.StatusBadGateway,
			wantText:   "Could not retrieve payment status.",
		},
		{
			name:       "persistence_error",
			query:      "?tranid=T-1&checkid=C-1",
			setup:      func(app *testApp) { app.store.InsertErr = errors.New("db down") },
			wantStatus: http.StatusInternalServerError,
			wantText:   "Error updating the contribution. Contact support.",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			app := newTestApp(t, 10)
			if rec := app.contribute(t, "donor@example.com", "10"); rec.Code != http.StatusSeeOther {
				t.Fatalf("contribute: %d", rec.Code)
			}
			if tc.setup != nil {
				tc.setup(app)
			}
			rec := app.confirm(t, tc.query)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.wantText) {
				t.Fatalf("expected %q in body: %s", tc.wantText, rec.Body.String())
			}
			if app.store.Count() != 0 {
				t.Fatalf("no contribution should be recorded")
			}
		})
	}
}

// TestPendingKeptOnFault verifies a gateway fault leaves the session order for a retry.
func TestPendingKeptOnFault(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, 10)
	app.contribute(t, "donor@example.com", "10")

	app.gateway.SetFailStatus(http.StatusBadGateway)
	if rec := app.confirm(t, "?tranid=T-7&checkid=C-7"); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if app.pending.Len() != 1 {
		t.Fatalf("pending order should survive a gateway fault")
	}

	app.gateway.SetFailStatus(0)
	if rec := app.confirm(t, "?tranid=T-7&checkid=C-7"); rec.Code != http.StatusOK {
		t.Fatalf("retry should succeed, got %d", rec.Code)
	}
	if rows := app.store.All(); len(rows) != 1 || rows[0].Email != "donor@example.com" {
		t.Fatalf("retry should record the session's contribution: %#v", rows)
	}
}

// TestPaymentConfirmationKeepsOtherPendingOrder verifies a confirmation for an older
// checkout records the gateway's order and leaves the newer session order alone.
func TestPaymentConfirmationKeepsOtherPendingOrder(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, 10)

	if rec := app.contribute(t, "donor@example.com", "10.00"); rec.Code != http.StatusSeeOther {
		t.Fatalf("first contribute: %d", rec.Code)
	}
	first := app.gateway.LastCreate()["ordernum"].(string)
	if rec := app.contribute(t, "donor@example.com", "500.00"); rec.Code != http.StatusSeeOther {
		t.Fatalf("second contribute: %d", rec.Code)
	}
	second := app.gateway.LastCreate()["ordernum"].(string)

	app.gateway.SetInquiryOrderNumber(first)
	app.gateway.SetInquiryAmount("10.00")
	rec := app.confirm(t, "?tranid=T-1&checkid=C-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	rows := app.store.All()
	if len(rows) != 1 {
		t.Fatalf("expected one contribution, got %d", len(rows))
	}
	if rows[0].OrderNumber != first || rows[0].Amount.StringFixed(2) != "10.00" {
		t.Fatalf("expected order %s for 10.00, got %s for %s", first, rows[0].OrderNumber, rows[0].Amount)
	}
	if app.pending.Len() != 1 {
		t.Fatalf("the newer session order should survive")
	}

	app.gateway.SetInquiryOrderNumber(second)
	app.gateway.SetInquiryAmount("500.00")
	if rec := app.confirm(t, "?tranid=T-2&checkid=C-2"); rec.Code != http.StatusOK {
		t.Fatalf("second confirm: %d", rec.Code)
	}
	rows = app.store.All()
	if len(rows) != 2 || app.pending.Len() != 0 {
		t.Fatalf("expected two rows and no pending order, got %d rows %d pending", len(rows), app.pending.Len())
	}
	for _, row := range rows {
		if row.OrderNumber == second && row.Email != "donor@example.com" {
			t.Fatalf("matching confirmation should carry the session email: %#v", row)
		}
	}
}

// TestContributeFailures verifies start errors map to their views.
func TestContributeFailures(t *testing.T) {
	t.Parallel()

	app := newTestApp(t, 10)
	app.counter.Err = errors.New("db down")
	if rec := app.contribute(t, "donor@example.com", "10"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	app = newTestApp(t, 10)
	app.gateway.SetFailStatus(http.StatusInternalServerError)
	rec := app.contribute(t, "donor@example.com", "10")
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "Could not retrieve payment URL.") {
		t.Fatalf("expected 502 payment url error, got %d", rec.Code)
	}
	if app.pending.Len() != 0 {
		t.Fatalf("failed start should not leave a pending order")
	}
}

// TestContributeRateLimited verifies repeated submissions from one client are throttled.
func TestContributeRateLimited(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, 2)

	for i := 0; i < 2; i++ {
		if rec := app.contribute(t, "donor@example.com", "10"); rec.Code != http.StatusSeeOther {
			t.Fatalf("request %d: expected 303, got %d", i+1, rec.Code)
		}
	}
	if rec := app.contribute(t, "donor@example.com", "10"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

// TestStaticRoutes verifies the index, favicon, health and token lookup edge cases.
func TestStaticRoutes(t *testing.T) {
	t.Parallel()
	app := newTestApp(t, 10)

	for _, path := range []string{"/", "/contribute", "/payment_failed", "/healthz"} {
		if rec := app.do(t, httptest.NewRequest(http.MethodGet, path, nil)); rec.Code != http.StatusOK {
			t.Fatalf("GET %s: %d", path, rec.Code)
		}
	}
	rec := app.do(t, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/x-icon" || rec.Body.Len() == 0 {
		t.Fatalf("favicon: %d %s", rec.Code, rec.Header().Get("Content-Type"))
	}
	if rec := app.do(t, httptest.NewRequest(http.MethodGet, "/tokens/not-a-token", nil)); rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed token: %d", rec.Code)
	}
	if rec := app.do(t, httptest.NewRequest(http.MethodGet, "/tokens/3f0a3f4c-0a4b-4d53-9a57-6f7a7a0c2d11", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown token: %d", rec.Code)
	}
}
