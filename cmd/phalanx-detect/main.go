// Package main is the entry point for the anomaly detection service.
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

	"phalanx/internal/archive"
	"phalanx/internal/config"
	"phalanx/internal/detect"
	"phalanx/internal/embedding"
	"phalanx/internal/errors"
	"phalanx/internal/history"
	"phalanx/internal/middleware"
	"phalanx/internal/policy"
	"phalanx/internal/schema"
	"phalanx/internal/scoring"
	"phalanx/internal/sink"
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
	if os.Getenv("PHALANX_ENV") == "production" {
		errors.SetProductionMode(true)
	}

	slog.Info("configuration loaded",
		"http_port", cfg.Server.HTTPPort,
		"embedding_dim", cfg.Detect.EmbeddingDim,
		"novelty_threshold", cfg.Scoring.NoveltyThreshold,
		"archive_enabled", cfg.Archive.Enabled,
	)

	// Core pipeline: embedder, event history, policies, sink, engine.
	var embedder embedding.Embedder = embedding.NewHashingEmbedder(cfg.Detect.EmbeddingDim)
	if cfg.Detect.EmbeddingURL != "" {
		embedder = embedding.NewHTTPEmbedder(cfg.Detect.EmbeddingURL, "", 0)
		slog.Info("using remote embedding service", "url", cfg.Detect.EmbeddingURL)
	}
	store := history.NewStore(embedder)
	policies := policy.NewStore(cfg.Policy.FilePath)

	sinkOpts := []sink.Option{
		sink.WithSideEffectTimeout(cfg.Sink.SideEffectTimeout),
	}
	if cfg.Sink.ComplianceURL != "" {
		sinkOpts = append(sinkOpts, sink.WithForwarder(sink.NewWebhookForwarder(cfg.Sink.ComplianceURL)))
	}
	if cfg.Sink.Redis.Enabled {
		redisMirror, err := sink.NewRedisMirror(
			cfg.Sink.Redis.Addr, cfg.Sink.Redis.Password, cfg.Sink.Redis.DB, cfg.Sink.Redis.Key)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisMirror.Close()
		sinkOpts = append(sinkOpts, sink.WithMirror(redisMirror))
	}
	var kafkaMirror *sink.KafkaMirror
	if cfg.Sink.Kafka.Enabled {
		kafkaMirror = sink.NewKafkaMirror(cfg.Sink.Kafka.Brokers, cfg.Sink.Kafka.Topic, logger)
		sinkOpts = append(sinkOpts, sink.WithMirror(kafkaMirror))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var archiveWriter *archive.Writer
	if cfg.Archive.Enabled {
		slog.Info("initializing verdict archive",
			"hosts", cfg.Archive.ClickHouse.Hosts,
			"database", cfg.Archive.ClickHouse.Database,
		)
		client, err := archive.NewClient(cfg.Archive.ClickHouse)
		if err != nil {
			slog.Error("failed to connect to ClickHouse", "error", err)
			os.Exit(1)
		}
		if err := client.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare archive schema", "error", err)
			os.Exit(1)
		}
		archiveWriter = archive.NewWriter(client, cfg.Archive.BatchWriter, logger)
		sinkOpts = append(sinkOpts, sink.WithMirror(archiveWriter))
	}

	anomalies := sink.New(logger, sinkOpts...)

	engineCfg := scoring.EngineConfig{
		NoveltyK:         cfg.Scoring.NoveltyK,
		NoveltyThreshold: cfg.Scoring.NoveltyThreshold,
		AmountField:      cfg.Scoring.AmountField,
	}
	engine := scoring.NewEngine(engineCfg, store, policies, anomalies, logger)

	validator := schema.NewValidatorWithConfig(schema.ValidatorConfig{
		MaxDataFields: cfg.Detect.MaxDataFields,
	})
	handler := detect.NewHandler(validator, store, engine, anomalies).
		WithMaxPayload(cfg.Detect.MaxPayloadSize).
		WithMaxBatch(cfg.Detect.MaxBatchSize)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	// Policy management is mounted here too so a single service is enough
	// for demos.
	policy.NewHandler(policies).RegisterRoutes(mux)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      middleware.Chain(mux, cfg, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		slog.Info("starting detection server", "address", server.Addr)
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

	if kafkaMirror != nil {
		if err := kafkaMirror.Close(); err != nil {
			slog.Error("kafka mirror close error", "error", err)
		}
	}
	if archiveWriter != nil {
		if err := archiveWriter.Close(); err != nil {
			slog.Error("archive writer close error", "error", err)
		}
		written, failed := archiveWriter.Stats()
		slog.Info("archive metrics", "verdicts_written", written, "verdicts_failed", failed)
	}

	slog.Info("shutdown complete",
		"history_entries", store.Len(),
		"pending_verdicts", anomalies.Len(),
	)
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
