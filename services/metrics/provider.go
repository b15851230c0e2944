package metrics

import (
	"github.com/tech-arch1tect/rollcall/config"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ProvideMetricsService),
)

// ProvideMetricsService returns nil when metrics are disabled; all recorders are nil-safe.
func ProvideMetricsService(cfg *config.Config) *Service {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return NewService()
}
