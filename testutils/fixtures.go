package testutils

import (
	"time"

	"github.com/tech-arch1tect/rollcall/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "rollcall-test",
			URL:  "http://localhost:3000",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		Verification: config.VerificationConfig{
			Cooldown:    60 * time.Second,
			CodeTTL:     10 * time.Minute,
			MaxAttempts: 5,
			MaxResends:  3,
		},
		Accounts: config.AccountsConfig{
			MinPasswordLength: 8,
			BcryptCost:        bcrypt.MinCost,
		},
		RateLimit: config.RateLimitConfig{
			Enabled:   false,
			Store:     "memory",
			Rate:      100,
			Period:    time.Minute,
			CountMode: config.CountAll,
		},
		Billing: config.BillingConfig{
			WebhookSecret: "whsec_test",
			PricePlans:    map[string]string{"price_basic": "basic", "price_pro": "pro"},
		},
		Cleanup: config.CleanupConfig{
			Schedule:  "0 4 * * *",
			Retention: 720 * time.Hour,
		},
		Metrics: config.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// FixedClock is a settable time source for services that accept a clock function.
type FixedClock struct {
	current time.Time
}

func NewFixedClock(start time.Time) *FixedClock {
	return &FixedClock{current: start}
}

func (c *FixedClock) Now() time.Time {
	return c.current
}

func (c *FixedClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

var TestStudents = struct {
	Email    string
	Password string
}{
	Email:    "student@school.edu",
	Password: "correct-horse",
}
