package accounts

import (
	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideAccountsService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return NewService(&cfg.Accounts, db, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideAccountsService),
)
