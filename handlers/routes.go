package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/middleware/ratelimit"
	"github.com/tech-arch1tect/rollcall/openapi"
	"github.com/tech-arch1tect/rollcall/server"
	"github.com/tech-arch1tect/rollcall/services/accounts"
	"github.com/tech-arch1tect/rollcall/services/billing"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"github.com/tech-arch1tect/rollcall/services/verification"
	"go.uber.org/fx"
)

const apiVersion = "1.0.0"

type RoutesParams struct {
	fx.In

	Config       *config.Config
	Server       *server.Server
	Logger       *logging.Service
	Verification *verification.Service
	Accounts     *accounts.Service
	Billing      *billing.Service  `optional:"true"`
	Limiter      ratelimit.Limiter `optional:"true"`
}

// RegisterRoutes mounts every HTTP endpoint and describes it in the document served
// at /openapi.json and /openapi.yaml. Billing routes are only mounted when billing
// is enabled.
func RegisterRoutes(p RoutesParams) *openapi.Document {
	doc := openapi.New(p.Config.App.Name, apiVersion).
		Server(p.Config.App.URL, "").
		Tag("auth", "Email verification codes").
		Tag("accounts", "Student registration")

	var limited []echo.MiddlewareFunc
	if p.Limiter != nil {
		limited = append(limited, echo.MiddlewareFunc(p.Limiter))
	}

	verify := NewVerificationHandler(p.Verification, p.Logger)
	auth := p.Server.Group("/auth", limited...)
	auth.POST("/sendVerificationCode", verify.SendCode)
	doc.Operation(http.MethodPost, "/auth/sendVerificationCode").
		Summary("Send a six digit verification code to an email address").
		Tags("auth").
		Body(sendCodeRequest{}).
		Response(http.StatusOK, okResponse{}, "Code sent").
		Response(http.StatusBadRequest, errorResponse{}, "invalid_email").
		Response(http.StatusTooManyRequests, errorResponse{}, "cooldown, resend_limit or rate_limited").
		Response(http.StatusInternalServerError, errorResponse{}, "server_error").
		Add()

	auth.POST("/verifyEmailCode", verify.VerifyCode)
	doc.Operation(http.MethodPost, "/auth/verifyEmailCode").
		Summary("Check a verification code and mark the email verified").
		Tags("auth").
		Body(verifyCodeRequest{}).
		Response(http.StatusOK, okResponse{}, "Email verified").
		Response(http.StatusBadRequest, errorResponse{}, "invalid_payload, invalid_code or expired").
		Response(http.StatusTooManyRequests, errorResponse{}, "too_many_attempts or rate_limited").
		Response(http.StatusInternalServerError, errorResponse{}, "server_error").
		Add()

	accountsHandler := NewAccountsHandler(p.Accounts, p.Logger)
	p.Server.Post("/register", accountsHandler.Register, limited...)
	doc.Operation(http.MethodPost, "/register").
		Summary("Register a student account").
		Tags("accounts").
		Body(registerRequest{}).
		Response(http.StatusCreated, okResponse{}, "Registered").
		Response(http.StatusBadRequest, errorResponse{}, "invalid_email or weak_password").
		Response(http.StatusConflict, errorResponse{}, "email_taken").
		Response(http.StatusTooManyRequests, errorResponse{}, "rate_limited").
		Response(http.StatusInternalServerError, errorResponse{}, "server_error").
		Add()

	if p.Billing != nil {
		registerBillingRoutes(p, doc)
	}

	p.Server.Get("/openapi.json", doc.JSONHandler())
	p.Server.Get("/openapi.yaml", doc.YAMLHandler())

	return doc
}

func registerBillingRoutes(p RoutesParams, doc *openapi.Document) {
	doc.Tag("billing", "Organisation subscriptions")

	h := NewBillingHandler(p.Billing, p.Logger)
	group := p.Server.Group("/billing")

	group.POST("/webhook", h.Webhook)
	doc.Operation(http.MethodPost, "/billing/webhook").
		Summary("Receive a signed Stripe event").
		Tags("billing").
		Header(billing.SignatureHeader, "Stripe webhook signature", true).
		RawBody("application/json").
		Response(http.StatusOK, billing.WebhookResult{}, "Event accepted").
		Response(http.StatusBadRequest, messageResponse{}, "Missing or invalid signature").
		Add()

	group.GET("/status", h.Status, RequireOrg)
	doc.Operation(http.MethodGet, "/billing/status").
		Summary("Current plan of the caller's organisation").
		Tags("billing").
		Header(orgIDHeader, "Organisation id", true).
		Header(userRoleHeader, "Caller's role in the organisation", false).
		Response(http.StatusOK, billing.Status{}, "Billing status").
		Response(http.StatusUnauthorized, messageResponse{}, "No organisation").
		Add()

	group.POST("/portal", h.Portal, RequireOrg, RequireOrgAdmin)
	doc.Operation(http.MethodPost, "/billing/portal").
		Summary("Open a Stripe billing portal session").
		Tags("billing").
		Header(orgIDHeader, "Organisation id", true).
		Header(userRoleHeader, "Must be admin", true).
		Body(portalRequest{}).
		Response(http.StatusOK, urlResponse{}, "Portal URL").
		Response(http.StatusBadRequest, messageResponse{}, "Stripe customer not found").
		Response(http.StatusForbidden, messageResponse{}, "Not an organisation admin").
		Add()

	group.POST("/checkout", h.Checkout, RequireOrg, RequireOrgAdmin)
	doc.Operation(http.MethodPost, "/billing/checkout").
		Summary("Start a Stripe checkout session for a plan").
		Tags("billing").
		Header(orgIDHeader, "Organisation id", true).
		Header(userRoleHeader, "Must be admin", true).
		Body(checkoutRequest{}).
		Response(http.StatusOK, urlResponse{}, "Checkout URL").
		Response(http.StatusBadRequest, messageResponse{}, "Invalid priceId").
		Response(http.StatusForbidden, messageResponse{}, "Not an organisation admin").
		Add()
}

var Module = fx.Options(
	fx.Invoke(RegisterRoutes),
)
