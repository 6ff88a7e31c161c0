package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// Refreshable is refreshed from the authoritative store on a schedule.
type Refreshable interface {
	Refresh(ctx context.Context) error
}

// JournalPruner removes settled journal entries created before a cutoff.
type JournalPruner interface {
	Cleanup(olderThan time.Time) (int, error)
}

// RefresherConfig controls how often caches are refreshed and how long
// journal entries are kept.
type RefresherConfig struct {
	Interval      time.Duration
	Retention     time.Duration
	PruneSchedule string
}

// Refresher keeps the caches close to Taskwarrior between user actions, so that
// changes made from other clients show up, and prunes the mutation journal.
type Refresher struct {
	target  Refreshable
	monitor ConnectionHealth
	journal JournalPruner
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     RefresherConfig
	now     func() time.Time
}

func NewRefresher(
	target Refreshable,
	monitor ConnectionHealth,
	journal JournalPruner,
	logger *zap.Logger,
	cfg RefresherConfig,
) (*Refresher, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	if cfg.PruneSchedule == "" {
		cfg.PruneSchedule = "@hourly"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Refresher{
		target:  target,
		monitor: monitor,
		journal: journal,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
		now:     time.Now,
	}

	schedule := fmt.Sprintf("@every %ds", max(1, int(cfg.Interval.Seconds())))
	if _, err := r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := r.Refresh(ctx); err != nil {
			r.logger.Error("cache refresh failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule refresh: %w", err)
	}

	if journal != nil {
		if _, err := r.cron.AddFunc(cfg.PruneSchedule, func() {
			if _, err := r.Prune(); err != nil {
				r.logger.Error("journal prune failed", zap.Error(err))
			}
		}); err != nil {
			return nil, fmt.Errorf("schedule journal prune: %w", err)
		}
	}

	return r, nil
}

// Start launches the cron scheduler.
func (r *Refresher) Start() {
	if r == nil || r.cron == nil {
		return
	}
	r.cron.Start()
	r.logger.Info("refresher started", zap.Duration("interval", r.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (r *Refresher) Stop(ctx context.Context) {
	if r == nil || r.cron == nil {
		return
	}
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	r.logger.Info("refresher stopped")
}

// Refresh refetches the caches unless Taskwarrior is known to be unreachable.
func (r *Refresher) Refresh(ctx context.Context) error {
	if r == nil || r.target == nil {
		return nil
	}
	if r.monitor != nil && !r.monitor.IsOnline() {
		r.logger.Debug("skipping refresh (taskwarrior offline)")
		return nil
	}
	return r.target.Refresh(ctx)
}

// Prune drops settled journal entries older than the retention window.
func (r *Refresher) Prune() (int, error) {
	if r == nil || r.journal == nil {
		return 0, nil
	}
	removed, err := r.journal.Cleanup(r.now().Add(-r.cfg.Retention))
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		r.logger.Info("journal pruned", zap.Int("removed", removed))
	}
	return removed, nil
}
