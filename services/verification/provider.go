package verification

import (
	"context"

	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/services/accounts"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"github.com/tech-arch1tect/rollcall/services/mail"
	"github.com/tech-arch1tect/rollcall/services/metrics"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type ServiceParams struct {
	fx.In

	Config   *config.Config
	DB       *gorm.DB
	Logger   *logging.Service
	Accounts *accounts.Service
	Mail     *mail.Service    `optional:"true"`
	Metrics  *metrics.Service `optional:"true"`
	Sender   Sender           `optional:"true"`
}

// ProvideVerificationService picks the delivery transport: an explicitly supplied
// Sender wins, then SMTP when configured, then the log fallback.
func ProvideVerificationService(p ServiceParams) *Service {
	opts := []Option{
		WithAccounts(p.Accounts),
		WithMetrics(p.Metrics),
	}

	switch {
	case p.Sender != nil:
		opts = append(opts, WithSender(p.Sender))
	case p.Mail != nil:
		opts = append(opts, WithSender(NewMailSender(p.Mail, p.Config.App.Name)))
	}

	return NewService(&p.Config.Verification, p.DB, p.Logger, opts...)
}

func ProvideReaper(cfg *config.Config, service *Service, logger *logging.Service) *Reaper {
	return NewReaper(&cfg.Cleanup, service.Store(), logger)
}

func registerReaperLifecycle(lc fx.Lifecycle, cfg *config.Config, reaper *Reaper) {
	if !cfg.Cleanup.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { return reaper.Start() },
		OnStop:  reaper.Stop,
	})
}

var Module = fx.Options(
	fx.Provide(ProvideVerificationService),
	fx.Provide(ProvideReaper),
	fx.Invoke(registerReaperLifecycle),
)
