package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"APP_"`
	Server       ServerConfig       `envPrefix:"SERVER_"`
	Log          LogConfig          `envPrefix:"LOG_"`
	Database     DatabaseConfig     `envPrefix:"DATABASE_"`
	Mail         MailConfig         `envPrefix:"MAIL_"`
	Verification VerificationConfig `envPrefix:"VERIFICATION_"`
	Accounts     AccountsConfig     `envPrefix:"ACCOUNTS_"`
	RateLimit    RateLimitConfig    `envPrefix:"RATE_LIMIT_"`
	Redis        RedisConfig        `envPrefix:"REDIS_"`
	Billing      BillingConfig      `envPrefix:"BILLING_"`
	Cleanup      CleanupConfig      `envPrefix:"CLEANUP_"`
	Metrics      MetricsConfig      `envPrefix:"METRICS_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"rollcall"`
	URL  string `env:"URL" envDefault:"http://localhost:3000"`
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"3000"`
	Host           string   `env:"HOST" envDefault:"localhost"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"rollcall.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type MailConfig struct {
	Host         string `env:"HOST"`
	Port         int    `env:"PORT" envDefault:"587"`
	Username     string `env:"USERNAME"`
	Password     string `env:"PASSWORD"`
	Encryption   string `env:"ENCRYPTION" envDefault:"tls"`
	FromAddress  string `env:"FROM_ADDRESS"`
	FromName     string `env:"FROM_NAME"`
	TemplatesDir string `env:"TEMPLATES_DIR"`
}

// Enabled reports whether an SMTP transport is configured at all.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.FromAddress != ""
}

type VerificationConfig struct {
	Cooldown    time.Duration `env:"COOLDOWN" envDefault:"60s"`
	CodeTTL     time.Duration `env:"CODE_TTL" envDefault:"10m"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"5"`
	MaxResends  int           `env:"MAX_RESENDS" envDefault:"3"`
}

type AccountsConfig struct {
	MinPasswordLength int `env:"MIN_PASSWORD_LENGTH" envDefault:"8"`
	BcryptCost        int `env:"BCRYPT_COST" envDefault:"10"`
}

type CountingMode string

const (
	CountAll      CountingMode = "all"
	CountFailures CountingMode = "failures"
	CountSuccess  CountingMode = "success"
)

type RateLimitConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"true"`
	Store     string        `env:"STORE" envDefault:"memory"`
	Rate      int           `env:"RATE" envDefault:"20"`
	Period    time.Duration `env:"PERIOD" envDefault:"1m"`
	CountMode CountingMode  `env:"COUNT_MODE" envDefault:"all"`
}

type RedisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type BillingConfig struct {
	Enabled       bool              `env:"ENABLED" envDefault:"false"`
	SecretKey     string            `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string            `env:"STRIPE_WEBHOOK_SECRET"`
	PricePlans    map[string]string `env:"PRICE_PLANS" envSeparator:"," envKeyValSeparator:":"`
}

type CleanupConfig struct {
	Enabled   bool          `env:"ENABLED" envDefault:"false"`
	Schedule  string        `env:"SCHEDULE" envDefault:"0 4 * * *"`
	Retention time.Duration `env:"RETENTION" envDefault:"720h"`
}

type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH" envDefault:"/metrics"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	if err := env.Parse(cfg); err != nil {
		return err
	}

	if c, ok := cfg.(*Config); ok {
		return Validate(c)
	}
	return nil
}

func Validate(cfg *Config) error {
	if err := validateVerificationConfig(&cfg.Verification); err != nil {
		return err
	}
	if err := validateRateLimitConfig(&cfg.RateLimit); err != nil {
		return err
	}
	if err := validateBillingConfig(&cfg.Billing); err != nil {
		return err
	}
	return nil
}

func validateVerificationConfig(cfg *VerificationConfig) error {
	if cfg.Cooldown < 0 {
		return fmt.Errorf("verification cooldown cannot be negative")
	}
	if cfg.CodeTTL <= 0 {
		return fmt.Errorf("verification code TTL must be positive")
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("verification max attempts must be at least 1")
	}
	if cfg.MaxResends < 0 {
		return fmt.Errorf("verification max resends cannot be negative")
	}
	return nil
}

func validateRateLimitConfig(cfg *RateLimitConfig) error {
	switch cfg.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("rate limit store must be: memory or redis")
	}

	switch cfg.CountMode {
	case CountAll, CountFailures, CountSuccess:
	default:
		return fmt.Errorf("rate limit count mode must be: all, failures, or success")
	}
	return nil
}

func validateBillingConfig(cfg *BillingConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.SecretKey == "" {
		return fmt.Errorf("billing requires BILLING_STRIPE_SECRET_KEY")
	}
	return nil
}
