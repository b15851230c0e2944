package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/rollcall/middleware/ratelimit"
	"github.com/tech-arch1tect/rollcall/openapi"
	"github.com/tech-arch1tect/rollcall/server"
	"github.com/tech-arch1tect/rollcall/services/accounts"
	"github.com/tech-arch1tect/rollcall/services/billing"
	"github.com/tech-arch1tect/rollcall/services/verification"
	"github.com/tech-arch1tect/rollcall/testutils"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mock.Mock
}

func (f *fakeGateway) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := f.Called(customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (f *fakeGateway) CreateCheckoutSession(ctx context.Context, req billing.CheckoutRequest) (string, error) {
	args := f.Called(req.PriceID)
	return args.String(0), args.Error(1)
}

func (f *fakeGateway) GetSubscription(ctx context.Context, id string) (*billing.Subscription, error) {
	args := f.Called(id)
	sub, _ := args.Get(0).(*billing.Subscription)
	return sub, args.Error(1)
}

func (f *fakeGateway) ParseWebhook(payload []byte, signature, secret string) (*billing.Event, error) {
	args := f.Called(signature)
	event, _ := args.Get(0).(*billing.Event)
	return event, args.Error(1)
}

type harness struct {
	doc     *openapi.Document
	srv     *server.Server
	db      *gorm.DB
	clock   *testutils.FixedClock
	sender  *testutils.RecordingSender
	billing *billing.Service
	gateway *fakeGateway
}

type harnessOption func(p *RoutesParams)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t,
		&verification.VerificationCode{},
		&accounts.Student{},
		&billing.OrgBilling{},
		&billing.ProcessedEvent{},
	)
	clock := testutils.NewFixedClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	sender := testutils.NewRecordingSender()
	gateway := &fakeGateway{}

	accountsService := accounts.NewService(&cfg.Accounts, db, nil)
	verificationService := verification.NewService(&cfg.Verification, db, nil,
		verification.WithClock(clock.Now),
		verification.WithSender(sender),
		verification.WithAccounts(accountsService),
	)
	billingService := billing.NewService(&cfg.Billing, cfg.App.URL, db, gateway, nil, nil)

	srv := server.New(cfg, nil, nil)
	params := RoutesParams{
		Config:       cfg,
		Server:       srv,
		Verification: verificationService,
		Accounts:     accountsService,
		Billing:      billingService,
	}
	for _, opt := range opts {
		opt(&params)
	}
	doc := RegisterRoutes(params)

	return &harness{
		doc:     doc,
		srv:     srv,
		db:      db,
		clock:   clock,
		sender:  sender,
		billing: billingService,
		gateway: gateway,
	}
}

func (h *harness) do(t *testing.T, method, path, body string, headers map[string]string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.srv.Echo().ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func (h *harness) send(t *testing.T, email string) (int, map[string]any) {
	return h.do(t, http.MethodPost, "/auth/sendVerificationCode", `{"email":"`+email+`"}`, nil)
}

func (h *harness) verify(t *testing.T, email, code string) (int, map[string]any) {
	return h.do(t, http.MethodPost, "/auth/verifyEmailCode", `{"email":"`+email+`","code":"`+code+`"}`, nil)
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestSendVerificationCode(t *testing.T) {
	t.Run("code sent", func(t *testing.T) {
		h := newHarness(t)

		status, body := h.send(t, " A@B.com ")

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{"ok": true, "message": "code_sent", "expiresInSeconds": float64(600)}, body)
		assert.Len(t, h.sender.Last("a@b.com"), 6)
	})

	t.Run("invalid email", func(t *testing.T) {
		h := newHarness(t)

		status, body := h.send(t, "not-an-email")

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, map[string]any{"ok": false, "error": "invalid_email"}, body)
	})

	t.Run("malformed body", func(t *testing.T) {
		h := newHarness(t)

		status, body := h.do(t, http.MethodPost, "/auth/sendVerificationCode", `{"email":`, nil)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_email", body["error"])
	})

	t.Run("body without json content type", func(t *testing.T) {
		h := newHarness(t)

		req := httptest.NewRequest(http.MethodPost, "/auth/sendVerificationCode", strings.NewReader(`{"email":"a@b.com"}`))
		rec := httptest.NewRecorder()
		h.srv.Echo().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"ok":false,"error":"invalid_email"}`, rec.Body.String())
		assert.Zero(t, h.sender.Count("a@b.com"))
	})

	t.Run("cooldown", func(t *testing.T) {
		h := newHarness(t)
		h.send(t, "a@b.com")
		h.clock.Advance(20 * time.Second)

		status, body := h.send(t, "a@b.com")

		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, map[string]any{"ok": false, "error": "cooldown", "retryAfterSeconds": float64(40)}, body)
	})

	t.Run("resend limit", func(t *testing.T) {
		h := newHarness(t)
		h.send(t, "a@b.com")
		for i := 0; i < 3; i++ {
			h.clock.Advance(61 * time.Second)
			status, _ := h.send(t, "a@b.com")
			require.Equal(t, http.StatusOK, status)
		}
		h.clock.Advance(61 * time.Second)

		status, body := h.send(t, "a@b.com")

		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, map[string]any{"ok": false, "error": "resend_limit"}, body)
	})

	t.Run("server error", func(t *testing.T) {
		h := newHarness(t)
		sqlDB, err := h.db.DB()
		require.NoError(t, err)
		require.NoError(t, sqlDB.Close())

		status, body := h.send(t, "a@b.com")

		assert.Equal(t, http.StatusInternalServerError, status)
		assert.Equal(t, map[string]any{"ok": false, "error": "server_error"}, body)
	})

	t.Run("rate limited", func(t *testing.T) {
		store := ratelimit.NewMemoryStore()
		t.Cleanup(func() { _ = store.Close() })
		limiter := ratelimit.Limiter(ratelimit.Middleware(&ratelimit.Config{Store: store, Rate: 1, Period: time.Minute}))
		h := newHarness(t, func(p *RoutesParams) { p.Limiter = limiter })

		first, _ := h.send(t, "a@b.com")
		status, body := h.send(t, "c@d.com")

		assert.Equal(t, http.StatusOK, first)
		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, "rate_limited", body["error"])
	})
}

func TestVerifyEmailCode(t *testing.T) {
	t.Run("verified", func(t *testing.T) {
		h := newHarness(t)
		h.send(t, "a@b.com")

		status, body := h.verify(t, "a@b.com", h.sender.Last("a@b.com"))

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{"ok": true, "message": "email_verified"}, body)
	})

	t.Run("numeric code accepted", func(t *testing.T) {
		h := newHarness(t)
		h.send(t, "a@b.com")
		code := h.sender.Last("a@b.com")
		if strings.HasPrefix(code, "0") {
			t.Skip("leading zero does not survive a JSON number")
		}

		status, _ := h.do(t, http.MethodPost, "/auth/verifyEmailCode", `{"email":"a@b.com","code":`+code+`}`, nil)

		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("invalid payload", func(t *testing.T) {
		h := newHarness(t)

		for _, body := range []string{
			`{"email":"a@b.com","code":"12345"}`,
			`{"email":"nope","code":"123456"}`,
			`{"email":"a@b.com","code":"12a456"}`,
			`garbage`,
		} {
			status, out := h.do(t, http.MethodPost, "/auth/verifyEmailCode", body, nil)
			assert.Equal(t, http.StatusBadRequest, status, body)
			assert.Equal(t, map[string]any{"ok": false, "error": "invalid_payload"}, out, body)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		h := newHarness(t)

		status, body := h.verify(t, "ghost@b.com", "123456")

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, map[string]any{"ok": false, "error": "invalid_code"}, body)
	})

	t.Run("wrong code reports attempts remaining", func(t *testing.T) {
		h := newHarness(t)
		h.send(t, "a@b.com")

		status, body := h.verify(t, "a@b.com", wrongCode(h.sender.Last("a@b.com")))

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, map[string]any{"ok": false, "error": "invalid_code", "attemptsRemaining": float64(4)}, body)
	})

	t.Run("expired", func(t *testing.T) {
		h := newHarness(t)
		h.send(t, "a@b.com")
		h.clock.Advance(11 * time.Minute)

		status, body := h.verify(t, "a@b.com", h.sender.Last("a@b.com"))

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, map[string]any{"ok": false, "error": "expired"}, body)
	})

	t.Run("too many attempts", func(t *testing.T) {
		h := newHarness(t)
		h.send(t, "a@b.com")
		code := h.sender.Last("a@b.com")
		for i := 0; i < 5; i++ {
			h.verify(t, "a@b.com", wrongCode(code))
		}

		status, body := h.verify(t, "a@b.com", code)

		assert.Equal(t, http.StatusTooManyRequests, status)
		assert.Equal(t, map[string]any{"ok": false, "error": "too_many_attempts"}, body)
	})
}

func TestRegister(t *testing.T) {
	register := func(h *harness, email, password string) (int, map[string]any) {
		return h.do(t, http.MethodPost, "/register", `{"email":"`+email+`","password":"`+password+`"}`, nil)
	}

	t.Run("created then taken", func(t *testing.T) {
		h := newHarness(t)

		status, body := register(h, testutils.TestStudents.Email, testutils.TestStudents.Password)
		assert.Equal(t, http.StatusCreated, status)
		assert.Equal(t, map[string]any{"ok": true, "message": "registered"}, body)

		status, body = register(h, strings.ToUpper(testutils.TestStudents.Email), testutils.TestStudents.Password)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "email_taken", body["error"])
	})

	t.Run("weak password", func(t *testing.T) {
		h := newHarness(t)

		status, body := register(h, "a@b.com", "short")

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "weak_password", body["error"])
	})

	t.Run("invalid email", func(t *testing.T) {
		h := newHarness(t)

		status, body := register(h, "a@b", "long-enough-password")

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "invalid_email", body["error"])
	})

	t.Run("verification marks student", func(t *testing.T) {
		h := newHarness(t)
		register(h, "a@b.com", "long-enough-password")
		h.send(t, "a@b.com")
		h.verify(t, "a@b.com", h.sender.Last("a@b.com"))

		var student accounts.Student
		require.NoError(t, h.db.Where("email = ?", "a@b.com").Take(&student).Error)
		assert.True(t, student.EmailVerified)
	})
}

func TestBillingRoutes(t *testing.T) {
	member := map[string]string{"X-Org-ID": "7", "X-User-Role": "member"}
	owner := map[string]string{"X-Org-ID": "7", "X-User-Role": "Owner"}

	t.Run("status requires org", func(t *testing.T) {
		h := newHarness(t)

		status, body := h.do(t, http.MethodGet, "/billing/status", "", map[string]string{"X-Org-ID": "abc"})

		assert.Equal(t, http.StatusUnauthorized, status)
		assert.Equal(t, map[string]any{"error": "Unauthorized"}, body)
	})

	t.Run("status defaults", func(t *testing.T) {
		h := newHarness(t)

		status, body := h.do(t, http.MethodGet, "/billing/status", "", member)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{
			"plan":                "free",
			"subscription_status": "inactive",
			"current_period_end":  nil,
			"can_manage_billing":  false,
		}, body)
	})

	t.Run("portal forbidden for members", func(t *testing.T) {
		h := newHarness(t)

		status, body := h.do(t, http.MethodPost, "/billing/portal", `{}`, member)

		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, map[string]any{"error": "Forbidden"}, body)
	})

	t.Run("portal without customer", func(t *testing.T) {
		h := newHarness(t)

		status, body := h.do(t, http.MethodPost, "/billing/portal", `{}`, owner)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Stripe customer not found", body["error"])
	})

	t.Run("portal", func(t *testing.T) {
		h := newHarness(t)
		customer := "cus_7"
		require.NoError(t, h.billing.Upsert(context.Background(), 7, billing.Update{StripeCustomerID: &customer}))
		h.gateway.On("CreatePortalSession", "cus_7", "http://localhost:3000/account").Return("https://portal.test/s", nil)

		status, body := h.do(t, http.MethodPost, "/billing/portal", `{"returnUrl":"http://localhost:3000/account"}`, owner)

		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{"url": "https://portal.test/s"}, body)
	})

	t.Run("checkout", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.On("CreateCheckoutSession", "price_pro").Return("https://checkout.test/s", nil)

		status, body := h.do(t, http.MethodPost, "/billing/checkout", `{"priceId":"price_pro"}`, owner)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{"url": "https://checkout.test/s"}, body)

		status, body = h.do(t, http.MethodPost, "/billing/checkout", `{"priceId":"price_nope"}`, owner)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Invalid priceId", body["error"])
	})

	t.Run("webhook requires signature", func(t *testing.T) {
		h := newHarness(t)

		status, body := h.do(t, http.MethodPost, "/billing/webhook", `{}`, nil)

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, map[string]any{"error": "Missing Stripe signature"}, body)
	})

	t.Run("webhook rejected", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.On("ParseWebhook", "bad").Return(nil, billing.ErrInvalidSignature)

		status, body := h.do(t, http.MethodPost, "/billing/webhook", `{}`, map[string]string{billing.SignatureHeader: "bad"})

		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Webhook signature verification failed", body["error"])
	})

	t.Run("webhook processed then ignored", func(t *testing.T) {
		h := newHarness(t)
		h.gateway.On("ParseWebhook", "good").Return(&billing.Event{ID: "evt_1", Type: "invoice.paid"}, nil)
		headers := map[string]string{billing.SignatureHeader: "good"}

		status, body := h.do(t, http.MethodPost, "/billing/webhook", `{}`, headers)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{"received": true}, body)

		status, body = h.do(t, http.MethodPost, "/billing/webhook", `{}`, headers)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, map[string]any{"received": true, "ignored": true}, body)
	})

	t.Run("not mounted without billing", func(t *testing.T) {
		h := newHarness(t, func(p *RoutesParams) { p.Billing = nil })

		req := httptest.NewRequest(http.MethodGet, "/billing/status", nil)
		rec := httptest.NewRecorder()
		h.srv.Echo().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestOpenAPIDocument(t *testing.T) {
	t.Run("describes mounted routes", func(t *testing.T) {
		h := newHarness(t)

		status, body := h.do(t, http.MethodGet, "/openapi.json", "", nil)
		require.Equal(t, http.StatusOK, status)

		paths, ok := body["paths"].(map[string]any)
		require.True(t, ok)
		for _, path := range []string{
			"/auth/sendVerificationCode",
			"/auth/verifyEmailCode",
			"/register",
			"/billing/webhook",
			"/billing/status",
			"/billing/portal",
			"/billing/checkout",
		} {
			assert.Contains(t, paths, path)
		}

		op := h.doc.Spec().Paths.Find("/auth/verifyEmailCode").Post
		require.NotNil(t, op)
		schema := op.RequestBody.Value.Content.Get("application/json").Schema.Value
		assert.Contains(t, schema.Properties, "email")
		assert.Contains(t, schema.Properties, "code")
	})

	t.Run("billing omitted when disabled", func(t *testing.T) {
		h := newHarness(t, func(p *RoutesParams) { p.Billing = nil })

		assert.Nil(t, h.doc.Spec().Paths.Find("/billing/status"))
		assert.NotNil(t, h.doc.Spec().Paths.Find("/register"))
	})

	t.Run("yaml", func(t *testing.T) {
		h := newHarness(t)

		req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
		rec := httptest.NewRecorder()
		h.srv.Echo().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "/auth/sendVerificationCode:")
	})
}
