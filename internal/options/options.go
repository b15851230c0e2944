package options

import (
	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/services/verification"
	"go.uber.org/fx"
)

type Options struct {
	Config         *config.Config
	Sender         verification.Sender
	EnableBilling  bool
	EnableMail     bool
	DisableHTTP    bool
	DatabaseModels []any
	ExtraFxOptions []fx.Option
}

type Option func(*Options)

func WithConfig(cfg *config.Config) Option {
	return func(opts *Options) {
		opts.Config = cfg
	}
}

// WithSender replaces the verification code transport, e.g. with an SMS gateway.
func WithSender(sender verification.Sender) Option {
	return func(opts *Options) {
		opts.Sender = sender
	}
}

func WithBilling() Option {
	return func(opts *Options) {
		opts.EnableBilling = true
	}
}

func WithMail() Option {
	return func(opts *Options) {
		opts.EnableMail = true
	}
}

func WithoutHTTP() Option {
	return func(opts *Options) {
		opts.DisableHTTP = true
	}
}

func WithModels(models ...any) Option {
	return func(opts *Options) {
		opts.DatabaseModels = append(opts.DatabaseModels, models...)
	}
}

func WithFxOptions(fxOpts ...fx.Option) Option {
	return func(opts *Options) {
		opts.ExtraFxOptions = append(opts.ExtraFxOptions, fxOpts...)
	}
}
