package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tech-arch1tect/rollcall/config"
	"github.com/tech-arch1tect/rollcall/services/logging"
	"go.uber.org/zap"
)

// Reaper periodically deletes verification rows that can no longer affect any decision.
type Reaper struct {
	config *config.CleanupConfig
	store  *Store
	logger *logging.Service
	cron   *cron.Cron
	now    func() time.Time
}

func NewReaper(cfg *config.CleanupConfig, store *Store, logger *logging.Service) *Reaper {
	return &Reaper{
		config: cfg,
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// PurgeStale removes rows that expired, or were verified, more than olderThan ago.
func (r *Reaper) PurgeStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := r.now().UTC().Add(-olderThan)

	deleted, err := r.store.PurgeStale(ctx, cutoff)
	if err != nil {
		r.logger.Error("failed to purge verification codes", zap.Error(err))
		return 0, err
	}

	r.logger.Info("purged stale verification codes",
		zap.Int64("deleted", deleted),
		zap.Time("cutoff", cutoff))
	return deleted, nil
}

// Start schedules PurgeStale on the configured cron expression.
func (r *Reaper) Start() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(r.config.Schedule)
	if err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", r.config.Schedule, err)
	}

	r.cron = cron.New(cron.WithParser(parser))
	r.cron.Schedule(schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		_, _ = r.PurgeStale(ctx, r.config.Retention)
	}))
	r.cron.Start()

	r.logger.Info("verification reaper started",
		zap.String("schedule", r.config.Schedule),
		zap.Duration("retention", r.config.Retention))
	return nil
}

// Stop waits for a running purge to finish or for ctx to expire.
func (r *Reaper) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}

	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
