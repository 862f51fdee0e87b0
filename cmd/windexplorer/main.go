package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/wind-explorer/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wind-explorer/internal/adapter/kafka"
	"github.com/couchcryptid/wind-explorer/internal/adapter/store"
	"github.com/couchcryptid/wind-explorer/internal/adapter/windapi"
	"github.com/couchcryptid/wind-explorer/internal/config"
	"github.com/couchcryptid/wind-explorer/internal/domain"
	"github.com/couchcryptid/wind-explorer/internal/heatmap"
	"github.com/couchcryptid/wind-explorer/internal/observability"
	"github.com/couchcryptid/wind-explorer/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := windapi.NewClient(cfg.AnalysisAPIURL, cfg.AnalysisTimeout, logger, metrics)
	weather := windapi.NewCachedWeatherFetcher(client, cfg.WeatherCacheSize, metrics)

	ready := httpadapter.ReadinessGroup{}

	// Analysis archive (optional via STORE_DRIVER=none).
	var archive pipeline.Archive
	var history httpadapter.History
	var db *store.Store
	if cfg.StoreDriver != config.StoreDisabled {
		db, err = store.Open(ctx, cfg.StoreDriver, cfg.StoreDSN, logger)
		if err != nil {
			logger.Error("failed to open analysis store", "error", err)
			os.Exit(1)
		}
		archive, history = db, db
		ready = append(ready, db)
	} else {
		logger.Info("analysis archive disabled")
	}

	// Analysis-completed notifications (optional via KAFKA_ENABLED).
	var publisher pipeline.Publisher
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		publisher = writer
		logger.Info("kafka notifications enabled", "topic", cfg.KafkaAnalysisTopic)
	}

	fallback, err := heatmap.LoadFallback(cfg.HeatmapFallbackFile)
	if err != nil {
		logger.Error("failed to load heatmap fallback", "error", err)
		os.Exit(1)
	}
	heat := heatmap.New(client, fallback, logger, metrics)
	ready = append(ready, heat)

	p := pipeline.New(weather, client, publisher, archive, pipeline.Settings{
		MinExtent:    cfg.MinSelectionExtent,
		MaxRangeDays: cfg.MaxRangeDays,
		MaxAttempts:  cfg.AnalysisMaxAttempts,
		AirDensity:   cfg.AirDensity,
		Height:       domain.Height(cfg.AnalysisHeight),
	}, logger, metrics)

	selection := pipeline.NewSelectionHost(domain.NewSelector(cfg.MinSelectionExtent), nil, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.Deps{
		Selection:       selection,
		Analyses:        p,
		Heatmap:         heat,
		History:         history,
		Ready:           ready,
		AnalysisTimeout: cfg.AnalysisTimeout * time.Duration(cfg.AnalysisMaxAttempts),
	}, logger, metrics)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start heatmap refresh.
	heatDone := make(chan struct{})
	go func() {
		defer close(heatDone)
		if err := heat.Run(ctx, cfg.HeatmapRefreshSchedule); err != nil {
			logger.Error("heatmap refresh error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	<-heatDone
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("analysis store close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
