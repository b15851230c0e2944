package rollcall

import (
	"github.com/tech-arch1tect/rollcall/app"
	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/internal/options"
	"github.com/tech-arch1tect/rollcall/services/verification"
	"go.uber.org/fx"
)

type App = app.App

type Option = options.Option

// New assembles the email verification service. Without options the configuration is
// read from the environment and codes are delivered by mail when MAIL_HOST is set.
func New(opts ...Option) (*App, error) {
	return app.New(opts...)
}

func WithConfig(cfg *config.Config) Option {
	return options.WithConfig(cfg)
}

func WithSender(sender verification.Sender) Option {
	return options.WithSender(sender)
}

func WithBilling() Option {
	return options.WithBilling()
}

func WithMail() Option {
	return options.WithMail()
}

func WithoutHTTP() Option {
	return options.WithoutHTTP()
}

func WithModels(models ...any) Option {
	return options.WithModels(models...)
}

func WithFxOptions(fxOpts ...fx.Option) Option {
	return options.WithFxOptions(fxOpts...)
}
