package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"occupancy-predictor/analytics"
	"occupancy-predictor/cache"
	"occupancy-predictor/config"
	"occupancy-predictor/handlers"
	"occupancy-predictor/inference"
	"occupancy-predictor/ingest"
	"occupancy-predictor/predictor"
	"occupancy-predictor/transformers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The service starts even without a model; /predict answers 503 until one loads.
	pred := predictor.New(cfg.ManifestPath)
	if err := pred.Load(); err != nil {
		slog.Error("model not loaded", "manifest", cfg.ManifestPath, "err", err)
	}

	var store analytics.SummaryStore
	if cfg.RedisAddr != "" {
		redisClient, err := cache.NewRedisClient(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.SummaryTTL,
		})
		if err != nil {
			slog.Error("failed to connect to redis", "addr", cfg.RedisAddr, "err", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		slog.Info("connected to redis", "addr", cfg.RedisAddr)
		store = redisClient
	} else {
		store = cache.NewMemoryStore(cfg.SummaryTTL)
	}

	tracker := analytics.NewTracker(store, analytics.TrackerConfig{
		Workers:        cfg.AnalyticsWorkers,
		WindowSize:     cfg.WindowSize,
		DriftThreshold: cfg.DriftThreshold,
	}, func(roomID string, _ float64) {
		handlers.InputDriftTotal.WithLabelValues(roomID).Inc()
	})

	svc := inference.NewService(pred, transformers.NewHistory(), tracker)

	if cfg.WatchModel {
		go func() {
			if err := predictor.Watch(ctx, pred, svc.ResetHistory); err != nil {
				slog.Error("pipeline watcher stopped", "err", err)
			}
		}()
	}

	var sub *ingest.Subscriber
	if cfg.MQTTBroker != "" {
		sub, err = ingest.Connect(ingest.Config{
			Broker:          cfg.MQTTBroker,
			ClientID:        cfg.MQTTClientID,
			Username:        cfg.MQTTUsername,
			Password:        cfg.MQTTPassword,
			ReadingTopic:    cfg.MQTTReadingTopic,
			PredictionTopic: cfg.MQTTPredictionTopic,
		}, svc)
		if err != nil {
			slog.Error("mqtt ingest disabled", "err", err)
		} else if err := sub.Start(); err != nil {
			slog.Error("mqtt ingest disabled", "err", err)
			sub.Close()
			sub = nil
		}
	}

	h := handlers.NewPredictionHandler(svc, pred, store)

	srv := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        handlers.NewRouter(h),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	go func() {
		slog.Info("server starting", "addr", cfg.HTTPAddr, "model_loaded", pred.IsLoaded())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "err", err)
			stop()
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "err", err)
	}
	if sub != nil {
		sub.Close()
	}
	tracker.Close()

	slog.Info("server exited")
}
