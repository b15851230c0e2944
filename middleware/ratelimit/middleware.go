package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

// Middleware enforces a fixed window limit per key. Store failures are logged and the
// request is let through.
func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Rate <= 0 {
		cfg.Rate = 10
	}
	if cfg.Period <= 0 {
		cfg.Period = time.Minute
	}
	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}
	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}
	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := cfg.KeyGenerator(c)
			resetTime := time.Now().Add(cfg.Period)

			count, existingReset, exists, err := cfg.Store.Get(ctx, key)
			if err != nil {
				cfg.Logger.Error("rate limit store unavailable", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			if exists {
				resetTime = existingReset
			}

			setHeaders(c, cfg.Rate, cfg.Rate-count, resetTime)

			if count >= cfg.Rate {
				cfg.Logger.Warn("rate limit reached", zap.String("key", key), zap.Int("limit", cfg.Rate))
				c.Response().Header().Set(echo.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(resetTime)))
				return cfg.OnLimitReached(c)
			}

			if cfg.CountMode == config.CountAll {
				newCount, err := cfg.Store.Increment(ctx, key, resetTime)
				if err != nil {
					cfg.Logger.Error("failed to count request", zap.String("key", key), zap.Error(err))
				} else {
					setHeaders(c, cfg.Rate, cfg.Rate-newCount, resetTime)
				}
				return next(c)
			}

			err = next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			counted := (cfg.CountMode == config.CountFailures && status >= 400) ||
				(cfg.CountMode == config.CountSuccess && status < 400)
			if counted {
				if _, incErr := cfg.Store.Increment(ctx, key, resetTime); incErr != nil {
					cfg.Logger.Error("failed to count request", zap.String("key", key), zap.Error(incErr))
				}
			}

			return err
		}
	}
}

func setHeaders(c echo.Context, limit, remaining int, resetTime time.Time) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

func retryAfterSeconds(resetTime time.Time) int {
	d := time.Until(resetTime)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// DefaultKeyGenerator scopes counters by route and client IP, so each limited route
// gets its own budget.
func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()
	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return "rate_limit:" + c.Path() + ":" + realIP
}

func DefaultOnLimitReached(c echo.Context) error {
	return c.JSON(http.StatusTooManyRequests, map[string]any{
		"ok":    false,
		"error": "rate_limited",
	})
}
