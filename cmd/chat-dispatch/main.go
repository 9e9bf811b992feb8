package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/00vDragos/RealTime-Chat/internal/chat"
	"github.com/00vDragos/RealTime-Chat/internal/server"
	"github.com/00vDragos/RealTime-Chat/internal/store/memory"
	"github.com/00vDragos/RealTime-Chat/internal/store/postgres"
	"github.com/00vDragos/RealTime-Chat/internal/throttle"
	"github.com/00vDragos/RealTime-Chat/pkg/config"
	"github.com/00vDragos/RealTime-Chat/pkg/logging"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, logger, cfg.Database)
	if err != nil {
		logger.Error("Failed to open store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore.Close()

	limiter, closeLimiter, err := openLimiter(ctx, logger, cfg)
	if err != nil {
		logger.Error("Failed to open typing throttle", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeLimiter.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := server.NewApp(logger, ctx, cfg, server.Deps{
		Store:    store,
		Limiter:  limiter,
		Registry: reg,
	})
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func openStore(ctx context.Context, logger *slog.Logger, cfg config.DatabaseConfig) (chat.Store, io.Closer, error) {
	if cfg.DSN == "" {
		logger.Warn("No database DSN configured, using the in-memory store")
		return memory.New(), nopCloser{}, nil
	}
	pg, err := postgres.Connect(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		logger.Info("Database schema migrated")
	}
	return pg, pg, nil
}

func openLimiter(ctx context.Context, logger *slog.Logger, cfg *config.Config) (throttle.Limiter, io.Closer, error) {
	if cfg.Typing.Window <= 0 {
		return throttle.Noop{}, nopCloser{}, nil
	}
	if cfg.Redis.Address == "" {
		return throttle.NewMemory(cfg.Typing.Window, logger), nopCloser{}, nil
	}
	r, err := throttle.Connect(ctx, cfg.Redis.Address, cfg.Typing.Window, logger)
	if err != nil {
		return nil, nil, err
	}
	return r, r, nil
}
