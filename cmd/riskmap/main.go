package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/risk-map-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/risk-map-service/internal/adapter/kafka"
	"github.com/couchcryptid/risk-map-service/internal/adapter/riskapi"
	"github.com/couchcryptid/risk-map-service/internal/config"
	"github.com/couchcryptid/risk-map-service/internal/observability"
	"github.com/couchcryptid/risk-map-service/internal/pipeline"
	"github.com/couchcryptid/risk-map-service/internal/selector"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	opts := cfg.RenderOptions()

	client := riskapi.NewClient(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, metrics, logger)
	sel := selector.New(client, client, opts, cfg.FallbackMonth, metrics, logger)
	runner := pipeline.NewRunner(client, sel, opts, metrics, logger)

	// Kafka overlay fan-out is feature-flagged via KAFKA_ENABLED.
	var surfaces []pipeline.Surface
	var writer *kafkaadapter.OverlayWriter
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewOverlayWriter(cfg, logger)
		surfaces = append(surfaces, writer)
		logger.Info("kafka overlay surface enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaOverlayTopic)
	} else {
		logger.Info("kafka overlay surface disabled")
	}

	coord := pipeline.New(runner, surfaces, cfg.DefaultFilters(), nil, cfg.RefreshInterval, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, coord, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := coord.Run(ctx); err != nil {
			logger.Error("coordinator error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("coordinator did not stop before shutdown timeout")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
