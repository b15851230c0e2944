package billing

import (
	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"github.com/tech-arch1tect/rollcall/services/metrics"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type ServiceParams struct {
	fx.In

	Config  *config.Config
	DB      *gorm.DB
	Logger  *logging.Service
	Metrics *metrics.Service `optional:"true"`
	Gateway Gateway          `optional:"true"`
}

// ProvideBillingService returns nil when billing is disabled.
func ProvideBillingService(p ServiceParams) *Service {
	if !p.Config.Billing.Enabled {
		p.Logger.Info("billing disabled")
		return nil
	}

	gateway := p.Gateway
	if gateway == nil {
		gateway = NewStripeGateway(p.Config.Billing.SecretKey)
	}

	return NewService(&p.Config.Billing, p.Config.App.URL, p.DB, gateway, p.Metrics, p.Logger)
}

var Module = fx.Options(
	fx.Provide(ProvideBillingService),
)
