package app

import "github.com/tech-arch1tect/rollcall/internal/options"

// New builds the application from functional options. Verification, accounts, metrics
// and HTTP are always on; billing and mail are opt-in.
func New(opts ...options.Option) (*App, error) {
	o := &options.Options{}
	for _, opt := range opts {
		opt(o)
	}

	builder := NewApp().WithVerification().WithMetrics()
	if o.Config != nil {
		builder.WithConfig(o.Config)
	}
	if len(o.DatabaseModels) > 0 {
		builder.WithDatabase(o.DatabaseModels...)
	}
	if o.Sender != nil {
		builder.WithSender(o.Sender)
	}
	if o.EnableMail {
		builder.WithMail()
	}
	if o.EnableBilling {
		builder.WithBilling()
	}
	if !o.DisableHTTP {
		builder.WithHTTP()
	}
	if len(o.ExtraFxOptions) > 0 {
		builder.WithFxOptions(o.ExtraFxOptions...)
	}

	return builder.Build()
}
