package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"github.com/tech-arch1tect/rollcall/services/verification"
	"go.uber.org/zap"
)

type VerificationHandler struct {
	service *verification.Service
	logger  *logging.Service
}

func NewVerificationHandler(service *verification.Service, logger *logging.Service) *VerificationHandler {
	return &VerificationHandler{service: service, logger: logger}
}

type sendCodeRequest struct {
	Email looseString `json:"email"`
}

type verifyCodeRequest struct {
	Email looseString `json:"email"`
	Code  looseString `json:"code"`
}

func (h *VerificationHandler) SendCode(c echo.Context) error {
	var req sendCodeRequest
	bindJSON(c, h.logger, &req)

	result, err := h.service.IssueCode(c.Request().Context(), req.Email.String())
	if err == nil {
		return c.JSON(http.StatusOK, okResponse{
			OK:               true,
			Message:          "code_sent",
			ExpiresInSeconds: intPtr(result.ExpiresInSeconds),
		})
	}

	var cooldown *verification.CooldownError
	switch {
	case errors.Is(err, verification.ErrInvalidEmail):
		return fail(c, http.StatusBadRequest, "invalid_email")
	case errors.As(err, &cooldown):
		return failWith(c, http.StatusTooManyRequests, errorResponse{
			Error:             "cooldown",
			RetryAfterSeconds: intPtr(cooldown.RetryAfterSeconds),
		})
	case errors.Is(err, verification.ErrResendLimitExceeded):
		return fail(c, http.StatusTooManyRequests, "resend_limit")
	default:
		h.logger.Error("send verification code failed", zap.Error(err))
		return serverError(c)
	}
}

func (h *VerificationHandler) VerifyCode(c echo.Context) error {
	var req verifyCodeRequest
	bindJSON(c, h.logger, &req)

	err := h.service.VerifyCode(c.Request().Context(), req.Email.String(), req.Code.String())
	if err == nil {
		return c.JSON(http.StatusOK, okResponse{OK: true, Message: "email_verified"})
	}

	var invalid *verification.InvalidCodeError
	switch {
	case errors.Is(err, verification.ErrInvalidPayload):
		return fail(c, http.StatusBadRequest, "invalid_payload")
	case errors.As(err, &invalid):
		return failWith(c, http.StatusBadRequest, errorResponse{
			Error:             "invalid_code",
			AttemptsRemaining: intPtr(invalid.AttemptsRemaining),
		})
	case errors.Is(err, verification.ErrInvalidCode):
		return fail(c, http.StatusBadRequest, "invalid_code")
	case errors.Is(err, verification.ErrExpired):
		return fail(c, http.StatusBadRequest, "expired")
	case errors.Is(err, verification.ErrTooManyAttempts):
		return fail(c, http.StatusTooManyRequests, "too_many_attempts")
	default:
		h.logger.Error("verify email code failed", zap.Error(err))
		return serverError(c)
	}
}
