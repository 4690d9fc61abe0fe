package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/energy-forecast/internal/adapter/http"
	"github.com/couchcryptid/energy-forecast/internal/adapter/objectstore"
	"github.com/couchcryptid/energy-forecast/internal/artifact"
	"github.com/couchcryptid/energy-forecast/internal/config"
	"github.com/couchcryptid/energy-forecast/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	objects, err := objectstore.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open object store", "error", err)
		os.Exit(1)
	}

	repo := artifact.NewRepository(objects, logger)
	info := httpadapter.APIInfo{Name: cfg.APIProjectName, Version: cfg.APIVersion}
	srv := httpadapter.NewServer(cfg.HTTPAddr, info, repo, repo, logger, metrics)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := objectstore.Close(objects); err != nil {
		logger.Error("object store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
