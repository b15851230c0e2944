package database

import (
	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config *config.Config
	Models *ModelsOption `optional:"true"`
	Logger *logging.Service
}

// Module provides the application's *gorm.DB. Models supplied as a *ModelsOption are
// migrated on connect when DATABASE_AUTO_MIGRATE is set.
var Module = fx.Options(
	fx.Provide(ProvideDatabaseFx),
)

func ProvideDatabaseFx(p Params) (*gorm.DB, error) {
	return ProvideDatabase(*p.Config, p.Models, p.Logger)
}
