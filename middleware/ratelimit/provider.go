package ratelimit

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewRedisClient(cfg *config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// ProvideRateLimitStore builds the configured store and ties its resources to the
// application lifecycle.
func ProvideRateLimitStore(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) Store {
	switch cfg.RateLimit.Store {
	case "redis":
		client := NewRedisClient(&cfg.Redis)
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := client.Ping(ctx).Err(); err != nil {
					logger.Warn("redis not reachable at startup, rate limiting fails open",
						zap.String("addr", cfg.Redis.Addr),
						zap.Error(err))
				}
				return nil
			},
			OnStop: func(context.Context) error { return client.Close() },
		})
		return NewRedisStore(client)
	default:
		store := NewMemoryStore()
		lc.Append(fx.Hook{OnStop: func(context.Context) error { return store.Close() }})
		return store
	}
}

// Limiter returns the middleware for verification routes, or nil when rate limiting
// is disabled.
type Limiter echo.MiddlewareFunc

func ProvideLimiter(cfg *config.Config, store Store, logger *logging.Service) Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return Limiter(Middleware(&Config{
		Store:     store,
		Rate:      cfg.RateLimit.Rate,
		Period:    cfg.RateLimit.Period,
		CountMode: cfg.RateLimit.CountMode,
		Logger:    logger,
	}))
}

var Module = fx.Options(
	fx.Provide(ProvideRateLimitStore),
	fx.Provide(ProvideLimiter),
)
