package app

import (
	"fmt"
	"reflect"

	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/database"
	"github.com/tech-arch1tect/rollcall/handlers"
	"github.com/tech-arch1tect/rollcall/middleware/ratelimit"
	"github.com/tech-arch1tect/rollcall/server"
	"github.com/tech-arch1tect/rollcall/services/accounts"
	"github.com/tech-arch1tect/rollcall/services/billing"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"github.com/tech-arch1tect/rollcall/services/mail"
	"github.com/tech-arch1tect/rollcall/services/metrics"
	"github.com/tech-arch1tect/rollcall/services/verification"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type AppBuilder struct {
	config    *config.Config
	services  map[string]bool
	models    []any
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		services:  make(map[string]bool),
		models:    make([]any, 0),
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithDatabase(models ...any) *AppBuilder {
	b.services["database"] = true
	b.models = append(b.models, models...)
	return b
}

func (b *AppBuilder) WithMail() *AppBuilder {
	b.services["mail"] = true
	return b
}

func (b *AppBuilder) WithAccounts() *AppBuilder {
	b.services["accounts"] = true
	return b
}

func (b *AppBuilder) WithVerification() *AppBuilder {
	b.services["verification"] = true
	return b
}

// WithSender replaces the verification code transport.
func (b *AppBuilder) WithSender(sender verification.Sender) *AppBuilder {
	if sender == nil {
		b.addError("sender cannot be nil")
		return b
	}
	b.services["verification"] = true
	b.fxOptions = append(b.fxOptions, fx.Provide(func() verification.Sender { return sender }))
	return b
}

func (b *AppBuilder) WithBilling() *AppBuilder {
	b.services["billing"] = true
	return b
}

func (b *AppBuilder) WithMetrics() *AppBuilder {
	b.services["metrics"] = true
	return b
}

// WithHTTP mounts the echo server, rate limiting and every route.
func (b *AppBuilder) WithHTTP() *AppBuilder {
	b.services["http"] = true
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.config == nil {
		if err := b.WithAutoConfig().validate(); err != nil {
			return nil, err
		}
	}

	logger, err := b.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	app := &App{
		config: b.config,
		logger: logger,
		models: b.models,
	}

	options := b.buildFxOptions(logger)
	options = append(options, fx.Invoke(func(p components) {
		app.db = p.DB
		app.server = p.Server
		app.verification = p.Verification
		app.reaper = p.Reaper
		app.accounts = p.Accounts
		app.billing = p.Billing
	}))
	options = append(options, b.fxOptions...)

	fxApp := fx.New(options...)
	if err := fxApp.Err(); err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("failed to wire application: %w", err)
	}
	app.fx = fxApp

	return app, nil
}

type components struct {
	fx.In

	DB           *gorm.DB              `optional:"true"`
	Server       *server.Server        `optional:"true"`
	Verification *verification.Service `optional:"true"`
	Reaper       *verification.Reaper  `optional:"true"`
	Accounts     *accounts.Service     `optional:"true"`
	Billing      *billing.Service      `optional:"true"`
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, fmt.Errorf("%s", msg))
}

// validate resolves implied features before anything is built.
func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %v", b.errors)
	}

	if b.services["http"] {
		b.services["verification"] = true
	}

	if b.services["verification"] {
		b.services["accounts"] = true
		b.models = appendModel(b.models, &verification.VerificationCode{})
	}

	if b.services["accounts"] {
		b.services["database"] = true
		b.models = appendModel(b.models, &accounts.Student{})
	}

	if b.services["billing"] {
		b.services["database"] = true
		b.models = appendModel(b.models, &billing.OrgBilling{}, &billing.ProcessedEvent{})
	}

	return nil
}

func appendModel(models []any, add ...any) []any {
	for _, m := range add {
		seen := false
		for _, existing := range models {
			if reflect.TypeOf(existing) == reflect.TypeOf(m) {
				seen = true
				break
			}
		}
		if !seen {
			models = append(models, m)
		}
	}
	return models
}

func (b *AppBuilder) createLogger() (*logging.Service, error) {
	if b.config == nil {
		return nil, fmt.Errorf("config required for logger creation")
	}

	return logging.NewService(logging.Config{
		Level:      logging.LogLevel(b.config.Log.Level),
		Format:     b.config.Log.Format,
		OutputPath: b.config.Log.Output,
	})
}

func (b *AppBuilder) buildFxOptions(logger *logging.Service) []fx.Option {
	options := []fx.Option{
		config.NewProvider(b.config),
		fx.Supply(logger),
		fx.NopLogger,
	}

	if b.services["database"] {
		options = append(options,
			fx.Supply(database.WithModels(b.models...)),
			database.Module,
		)
	}

	if b.services["metrics"] || b.services["http"] {
		options = append(options, metrics.Module)
	}
	if b.services["mail"] {
		options = append(options, mail.Module)
	}
	if b.services["accounts"] {
		options = append(options, accounts.Module)
	}
	if b.services["verification"] {
		options = append(options, verification.Module)
	}
	if b.services["billing"] {
		options = append(options, billing.Module)
	}
	if b.services["http"] {
		options = append(options,
			server.NewProvider(),
			ratelimit.Module,
			handlers.Module,
		)
	}

	return options
}
