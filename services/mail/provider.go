package mail

import (
	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"go.uber.org/fx"
)

// ProvideMailService returns nil when no SMTP host is configured; consumers fall back
// to logging delivery in that case.
func ProvideMailService(cfg *config.Config, logger *logging.Service) (*Service, error) {
	if !cfg.Mail.Enabled() {
		logger.Warn("mail transport not configured, outgoing mail is disabled")
		return nil, nil
	}
	return NewService(&cfg.Mail, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideMailService),
)
