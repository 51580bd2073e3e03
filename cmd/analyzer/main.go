package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/conflictmap/sar-damage-service/internal/adapter/footprint"
	"github.com/conflictmap/sar-damage-service/internal/adapter/httpadapter"
	"github.com/conflictmap/sar-damage-service/internal/adapter/imagery"
	"github.com/conflictmap/sar-damage-service/internal/adapter/kafkaadapter"
	"github.com/conflictmap/sar-damage-service/internal/adapter/worldpop"
	"github.com/conflictmap/sar-damage-service/internal/config"
	"github.com/conflictmap/sar-damage-service/internal/observability"
	"github.com/conflictmap/sar-damage-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Scene fetches are the expensive part of an analysis; identical
	// (bbox, window, polarization) queries are served from the LRU cache.
	catalog := imagery.NewClient(cfg.ImageryBaseURL, cfg.ImageryToken, cfg.ImageryTimeout, cfg.ImageryMaxRetries, metrics, logger)
	scenes := imagery.NewCachedFetcher(catalog, cfg.ImageryCacheSize, metrics)

	footprints := footprint.NewSources(cfg, metrics, logger)
	population := worldpop.NewClient(cfg.PopulationBaseURL, cfg.PopulationTimeout, logger)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	analyzer := pipeline.NewAnalyzer(scenes, footprints, population, cfg.TThreshold, metrics, logger)

	p := pipeline.New(reader, analyzer, writer, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, analyzer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start analysis pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
