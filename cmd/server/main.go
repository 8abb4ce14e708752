package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"riskmap/internal/catalog"
	"riskmap/internal/classify"
	"riskmap/internal/config"
	"riskmap/internal/geom"
	"riskmap/internal/observability"
	"riskmap/internal/overlay"
	"riskmap/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	metrics := observability.NewMetrics()

	fields := geom.DefaultFields
	fields.Mean = cfg.MeanField
	table := classify.R0Table()
	builder := overlay.NewBuilder(table, overlay.DefaultView(), fields, logger, metrics)
	cat := catalog.New(cfg)
	if err := cat.CheckReady(); err != nil {
		logger.Warn("data directory not ready", "error", err)
	}

	logger.Info("serving risk maps", "data_dir", cat.DataDir(), "boundary_mode", cfg.BoundaryMode)
	srv := server.NewServer(cfg.HTTPAddr, builder, cat, table.Legend(), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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
	logger.Info("shutdown complete")
}
