package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/rollcall/services/billing"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"go.uber.org/zap"
)

const (
	orgIDHeader    = "X-Org-ID"
	userRoleHeader = "X-User-Role"

	orgIDContextKey   = "billing_org_id"
	orgRoleContextKey = "billing_org_role"
)

type BillingHandler struct {
	service *billing.Service
	logger  *logging.Service
}

func NewBillingHandler(service *billing.Service, logger *logging.Service) *BillingHandler {
	return &BillingHandler{service: service, logger: logger}
}

type messageResponse struct {
	Error string `json:"error"`
}

type urlResponse struct {
	URL string `json:"url"`
}

// RequireOrg reads the caller's organisation from the headers set by the upstream
// auth proxy.
func RequireOrg(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		orgID, ok := parseOrgID(c.Request().Header.Get(orgIDHeader))
		if !ok {
			return c.JSON(http.StatusUnauthorized, messageResponse{Error: "Unauthorized"})
		}

		c.Set(orgIDContextKey, orgID)
		c.Set(orgRoleContextKey, strings.ToLower(strings.TrimSpace(c.Request().Header.Get(userRoleHeader))))
		return next(c)
	}
}

func RequireOrgAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !isOrgAdmin(orgRole(c)) {
			return c.JSON(http.StatusForbidden, messageResponse{Error: "Forbidden"})
		}
		return next(c)
	}
}

func isOrgAdmin(role string) bool {
	return role == "owner" || role == "admin"
}

func orgID(c echo.Context) int64 {
	id, _ := c.Get(orgIDContextKey).(int64)
	return id
}

func orgRole(c echo.Context) string {
	role, _ := c.Get(orgRoleContextKey).(string)
	return role
}

func (h *BillingHandler) Status(c echo.Context) error {
	status, err := h.service.GetStatus(c.Request().Context(), orgID(c), isOrgAdmin(orgRole(c)))
	if err != nil {
		h.logger.Error("billing status failed", zap.Int64("org_id", orgID(c)), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, messageResponse{Error: "Internal server error"})
	}
	return c.JSON(http.StatusOK, status)
}

type portalRequest struct {
	ReturnURL string `json:"returnUrl"`
}

func (h *BillingHandler) Portal(c echo.Context) error {
	var req portalRequest
	bindJSON(c, h.logger, &req)

	url, err := h.service.CreatePortalSession(c.Request().Context(), orgID(c), req.ReturnURL)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, urlResponse{URL: url})
	case errors.Is(err, billing.ErrCustomerNotFound):
		return c.JSON(http.StatusBadRequest, messageResponse{Error: "Stripe customer not found"})
	default:
		return c.JSON(http.StatusInternalServerError, messageResponse{Error: "Internal server error"})
	}
}

type checkoutRequest struct {
	PriceID string `json:"priceId"`
}

func (h *BillingHandler) Checkout(c echo.Context) error {
	var req checkoutRequest
	bindJSON(c, h.logger, &req)

	url, err := h.service.CreateCheckoutSession(c.Request().Context(), orgID(c), strings.TrimSpace(req.PriceID))
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, urlResponse{URL: url})
	case errors.Is(err, billing.ErrInvalidPrice):
		return c.JSON(http.StatusBadRequest, messageResponse{Error: "Invalid priceId"})
	default:
		return c.JSON(http.StatusInternalServerError, messageResponse{Error: "Internal server error"})
	}
}

func (h *BillingHandler) Webhook(c echo.Context) error {
	signature := c.Request().Header.Get(billing.SignatureHeader)
	if signature == "" {
		return c.JSON(http.StatusBadRequest, messageResponse{Error: "Missing Stripe signature"})
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Error: "Webhook signature verification failed"})
	}

	result, err := h.service.HandleWebhook(c.Request().Context(), payload, signature)
	if err != nil {
		return c.JSON(http.StatusBadRequest, messageResponse{Error: "Webhook signature verification failed"})
	}
	return c.JSON(http.StatusOK, result)
}
