package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/tabrecon/internal/config"
	"github.com/JonMunkholm/tabrecon/internal/core"
	"github.com/JonMunkholm/tabrecon/internal/logging"
	"github.com/JonMunkholm/tabrecon/internal/postgres"
	"github.com/JonMunkholm/tabrecon/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"history_db", cfg.Database.Enabled(),
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("configuration", "config", cfg.String())

	ctx := context.Background()

	// Merge history goes to Postgres when configured, memory otherwise
	var history core.HistoryRecorder
	if cfg.Database.Enabled() {
		pool, err := postgres.Connect(ctx, cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		store := postgres.NewHistoryStore(pool)
		if err := store.Migrate(ctx); err != nil {
			slog.Error("failed to prepare history table", "error", err)
			os.Exit(1)
		}
		history = store
	} else {
		slog.Info("DATABASE_URL not set, keeping merge history in memory", "capacity", cfg.History.MemoryCap)
		history = core.NewMemoryHistory(cfg.History.MemoryCap)
	}

	service := core.NewService(core.ServiceOptions{
		MaxConcurrentLoads: cfg.Upload.MaxConcurrent,
		MaxLoadWait:        cfg.Upload.MaxWaitTime,
		Normalize:          core.NormalizeOptions{BlankRowFilterLimit: cfg.Upload.BlankRowFilterLimit},
		History:            history,
	})

	server := web.NewServer(service, cfg)

	// Cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	go service.StartSweeper(jobCtx, core.SweepConfig{
		DatasetTTL:       cfg.Session.DatasetTTL,
		Interval:         cfg.Session.SweepInterval,
		HistoryRetention: cfg.History.Retention(),
	})

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LoadStatus(); status.Active > 0 {
			slog.Info("waiting for loads to complete", "active", status.Active)
			if err := service.WaitForLoads(shutdownCtx); err != nil {
				slog.Warn("loads did not complete in time", "error", err)
			} else {
				slog.Info("all loads completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(jobCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		cancelJobs()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
