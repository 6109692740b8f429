// Package main is the entry point for the compliance automation service.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"phalanx/internal/config"
	"phalanx/internal/middleware"
	"phalanx/internal/report"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("configuration loaded",
		"http_port", cfg.Server.HTTPPort,
		"reports_dir", cfg.Reports.Dir,
		"report_cycle", cfg.Reports.ReportCycle,
		"s3_enabled", cfg.Reports.S3.Enabled,
	)

	store, err := report.NewStore(cfg.Reports.Dir)
	if err != nil {
		slog.Error("failed to open report store", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var uploader *report.Uploader
	if cfg.Reports.S3.Enabled {
		uploader, err = report.NewUploader(ctx, cfg.Reports.S3, logger)
		if err != nil {
			slog.Error("failed to configure S3 archival", "error", err)
			os.Exit(1)
		}
		slog.Info("S3 report archival enabled", "bucket", cfg.Reports.S3.Bucket)
	}

	handler := report.NewHandler(store, uploader, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      middleware.Chain(mux, cfg, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Periodic reporter drains the detection service's recorded verdicts
	// into a summary report each cycle.
	reporter := report.NewReporter(cfg.Reports.DetectURL, store, uploader, cfg.Reports.ReportCycle, logger)
	go reporter.Run(ctx)

	go func() {
		slog.Info("starting compliance server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	cancel()

	slog.Info("shutdown complete")
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
