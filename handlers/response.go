package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"go.uber.org/zap"
)

type okResponse struct {
	OK               bool   `json:"ok"`
	Message          string `json:"message"`
	ExpiresInSeconds *int   `json:"expiresInSeconds,omitempty"`
}

type errorResponse struct {
	OK                bool   `json:"ok"`
	Error             string `json:"error"`
	RetryAfterSeconds *int   `json:"retryAfterSeconds,omitempty"`
	AttemptsRemaining *int   `json:"attemptsRemaining,omitempty"`
}

func fail(c echo.Context, status int, code string) error {
	return c.JSON(status, errorResponse{OK: false, Error: code})
}

func failWith(c echo.Context, status int, resp errorResponse) error {
	resp.OK = false
	return c.JSON(status, resp)
}

func serverError(c echo.Context) error {
	return fail(c, http.StatusInternalServerError, "server_error")
}

func intPtr(v int) *int {
	return &v
}

// looseString accepts a JSON string or number, so clients posting {"code": 123456}
// are treated like {"code": "123456"}.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		*s = ""
		return nil
	}
	*s = looseString(num.String())
	return nil
}

func (s looseString) String() string {
	return strings.TrimSpace(string(s))
}

// bindJSON binds the request body into dst. A body that cannot be bound leaves the
// missing fields empty, which the handlers then reject through their normal validation.
func bindJSON(c echo.Context, logger *logging.Service, dst any) {
	if err := c.Bind(dst); err != nil {
		logger.Debug("request body not bound", zap.String("path", c.Path()), zap.Error(err))
	}
}

func parseOrgID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
