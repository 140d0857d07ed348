package core

import (
	"context"
	"log/slog"
	"time"
)

// SweepConfig controls the background maintenance loop.
type SweepConfig struct {
	DatasetTTL       time.Duration // Idle time before a dataset is dropped (default: 2h)
	Interval         time.Duration // How often to run (default: 10m)
	HistoryRetention time.Duration // Age at which merge runs are purged; zero keeps them
}

func (c SweepConfig) withDefaults() SweepConfig {
	if c.DatasetTTL <= 0 {
		c.DatasetTTL = 2 * time.Hour
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Minute
	}
	return c
}

// StartSweeper expires idle datasets and purges old merge history.
// It runs immediately, then every Interval, until ctx is cancelled.
func (s *Service) StartSweeper(ctx context.Context, cfg SweepConfig) {
	cfg = cfg.withDefaults()
	slog.Info("sweeper started",
		"dataset_ttl", cfg.DatasetTTL,
		"interval", cfg.Interval,
		"history_retention", cfg.HistoryRetention,
	)

	s.sweep(ctx, cfg)

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx, cfg)
		}
	}
}

// sweep runs one maintenance cycle. Failures are logged, never fatal.
func (s *Service) sweep(ctx context.Context, cfg SweepConfig) {
	start := time.Now()

	expired := s.store.Expire(cfg.DatasetTTL)
	if expired > 0 {
		slog.Info("expired idle datasets", "count", expired, "remaining", s.store.Len())
	}

	if cfg.HistoryRetention > 0 {
		purged, err := s.history.PurgeRuns(ctx, time.Now().Add(-cfg.HistoryRetention))
		if err != nil {
			slog.Error("history purge failed", "error", err)
		} else if purged > 0 {
			slog.Info("purged merge history", "runs_purged", purged)
		}
	}

	slog.Debug("sweep completed", "duration_ms", time.Since(start).Milliseconds())
}
