// Package maintenance runs scheduled store upkeep: a cron-gated manual
// compaction of the pebble keyspace.
package maintenance

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chathub/pkg/config"
	"chathub/pkg/logger"
	"chathub/pkg/store"
)

// Start launches the maintenance scheduler if enabled and returns a cancel
// func. An empty cron defaults to daily at 03:00.
func Start(ctx context.Context, cfg config.MaintenanceConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("maintenance_disabled")
		return func() {}, nil
	}
	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("maintenance_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid maintenance cron expression: %s", cfg.Cron)
	}
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cronExpr)
	logger.Info("maintenance_scheduler_started", "cron", cronExpr)
	return cancel, nil
}

// runScheduler computes the next tick for the configured cron and runs a
// compaction at each tick until the context is canceled.
func runScheduler(ctx context.Context, cronExpr string) {
	for {
		now := time.Now()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("maintenance_next_tick_failed", "cron", cronExpr, "error", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
		}
		start := time.Now()
		if err := store.Compact(); err != nil {
			logger.Error("maintenance_compact_failed", "error", err)
			continue
		}
		logger.Info("maintenance_compact_done", "took", time.Since(start).String())
	}
}
