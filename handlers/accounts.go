package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/rollcall/services/accounts"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"go.uber.org/zap"
)

type AccountsHandler struct {
	service *accounts.Service
	logger  *logging.Service
}

func NewAccountsHandler(service *accounts.Service, logger *logging.Service) *AccountsHandler {
	return &AccountsHandler{service: service, logger: logger}
}

type registerRequest struct {
	Email    looseString `json:"email"`
	Password string      `json:"password"`
}

func (h *AccountsHandler) Register(c echo.Context) error {
	var req registerRequest
	bindJSON(c, h.logger, &req)

	_, err := h.service.Register(c.Request().Context(), req.Email.String(), req.Password)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, okResponse{OK: true, Message: "registered"})
	case errors.Is(err, accounts.ErrInvalidEmail):
		return fail(c, http.StatusBadRequest, "invalid_email")
	case errors.Is(err, accounts.ErrWeakPassword):
		return fail(c, http.StatusBadRequest, "weak_password")
	case errors.Is(err, accounts.ErrEmailTaken):
		return fail(c, http.StatusConflict, "email_taken")
	default:
		h.logger.Error("registration failed", zap.Error(err))
		return serverError(c)
	}
}
