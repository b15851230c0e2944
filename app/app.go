package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/database"
	"github.com/tech-arch1tect/rollcall/server"
	"github.com/tech-arch1tect/rollcall/services/accounts"
	"github.com/tech-arch1tect/rollcall/services/billing"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"github.com/tech-arch1tect/rollcall/services/verification"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	fx     *fx.App
	config *config.Config
	logger *logging.Service
	db     *gorm.DB
	models []any

	server       *server.Server
	verification *verification.Service
	reaper       *verification.Reaper
	accounts     *accounts.Service
	billing      *billing.Service
}

func (a *App) Start(ctx context.Context) error {
	return a.fx.Start(ctx)
}

// Run starts the application and blocks until SIGINT or SIGTERM, or until a component
// asks fx to shut down.
func (a *App) Run() error {
	startCtx, cancel := context.WithTimeout(context.Background(), a.fx.StartTimeout())
	defer cancel()

	if err := a.Start(startCtx); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.logger.Info("received shutdown signal, stopping gracefully", zap.String("signal", sig.String()))
	case sig := <-a.fx.Wait():
		a.logger.Info("shutdown requested", zap.Int("exit_code", sig.ExitCode))
	}

	return a.Stop(30 * time.Second)
}

func (a *App) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := a.fx.Stop(ctx); err != nil {
		a.logger.Error("failed to stop application gracefully", zap.Error(err))
		return err
	}
	return a.Close()
}

// Close releases the database pool.
func (a *App) Close() error {
	defer a.logger.Sync()

	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate applies the schema of every registered model, regardless of DATABASE_AUTO_MIGRATE.
func (a *App) Migrate() error {
	if a.db == nil {
		return fmt.Errorf("database not enabled")
	}
	if err := database.Migrate(a.db, a.models...); err != nil {
		return err
	}
	a.logger.Info("database migrated", zap.Int("models", len(a.models)))
	return nil
}

func (a *App) Server() *echo.Echo {
	if a.server == nil {
		a.logger.Warn("server not initialised, build the app WithHTTP")
		return nil
	}
	return a.server.Echo()
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Verification() *verification.Service {
	return a.verification
}

func (a *App) Reaper() *verification.Reaper {
	return a.reaper
}

func (a *App) Accounts() *accounts.Service {
	return a.accounts
}

// Billing is nil unless BILLING_ENABLED is set.
func (a *App) Billing() *billing.Service {
	return a.billing
}
