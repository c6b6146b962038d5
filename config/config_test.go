package config

import (
	"log/slog"
	"testing"
	"time"
)

var allKeys = []string{
	"HTTP_ADDR", "SHUTDOWN_TIMEOUT", "LOG_LEVEL", "MODEL_MANIFEST", "MODEL_WATCH",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "SUMMARY_TTL",
	"ANALYTICS_WORKERS", "ANALYTICS_WINDOW", "DRIFT_THRESHOLD",
	"MQTT_BROKER", "MQTT_CLIENT_ID", "MQTT_USERNAME", "MQTT_PASSWORD",
	"MQTT_READING_TOPIC", "MQTT_PREDICTION_TOPIC",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("HTTPAddr: got %q, want %q", cfg.HTTPAddr, DefaultHTTPAddr)
	}
	if cfg.ManifestPath != DefaultManifestPath {
		t.Errorf("ManifestPath: got %q, want %q", cfg.ManifestPath, DefaultManifestPath)
	}
	if cfg.WatchModel {
		t.Error("WatchModel: got true, want false")
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr: got %q, want empty", cfg.RedisAddr)
	}
	if cfg.SummaryTTL != DefaultSummaryTTL {
		t.Errorf("SummaryTTL: got %v, want %v", cfg.SummaryTTL, DefaultSummaryTTL)
	}
	if cfg.WindowSize != DefaultWindowSize {
		t.Errorf("WindowSize: got %d, want %d", cfg.WindowSize, DefaultWindowSize)
	}
	if cfg.DriftThreshold != DefaultDriftThreshold {
		t.Errorf("DriftThreshold: got %v, want %v", cfg.DriftThreshold, DefaultDriftThreshold)
	}
	if cfg.MQTTReadingTopic != DefaultMQTTReadingTopic {
		t.Errorf("MQTTReadingTopic: got %q", cfg.MQTTReadingTopic)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel: got %v, want INFO", cfg.LogLevel)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("MODEL_MANIFEST", "/srv/model/pipeline.yaml")
	t.Setenv("MODEL_WATCH", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("SUMMARY_TTL", "90s")
	t.Setenv("ANALYTICS_WORKERS", "6")
	t.Setenv("DRIFT_THRESHOLD", "2.5")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr: got %q, want :9000", cfg.HTTPAddr)
	}
	if cfg.ManifestPath != "/srv/model/pipeline.yaml" {
		t.Errorf("ManifestPath: got %q", cfg.ManifestPath)
	}
	if !cfg.WatchModel {
		t.Error("WatchModel: got false, want true")
	}
	if cfg.RedisAddr != "redis:6379" || cfg.RedisDB != 2 {
		t.Errorf("redis: got %q db=%d", cfg.RedisAddr, cfg.RedisDB)
	}
	if cfg.SummaryTTL != 90*time.Second {
		t.Errorf("SummaryTTL: got %v, want 90s", cfg.SummaryTTL)
	}
	if cfg.AnalyticsWorkers != 6 {
		t.Errorf("AnalyticsWorkers: got %d, want 6", cfg.AnalyticsWorkers)
	}
	if cfg.DriftThreshold != 2.5 {
		t.Errorf("DriftThreshold: got %v, want 2.5", cfg.DriftThreshold)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel: got %v, want DEBUG", cfg.LogLevel)
	}
}

func TestLoad_InvalidValuesFallBackToDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_DB", "two")
	t.Setenv("MODEL_WATCH", "maybe")
	t.Setenv("SUMMARY_TTL", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("RedisDB: got %d, want 0", cfg.RedisDB)
	}
	if cfg.WatchModel {
		t.Error("WatchModel: got true, want false")
	}
	if cfg.SummaryTTL != DefaultSummaryTTL {
		t.Errorf("SummaryTTL: got %v, want %v", cfg.SummaryTTL, DefaultSummaryTTL)
	}
}

func TestLoad_SmallestDriftWindow(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANALYTICS_WINDOW", "10")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WindowSize != 10 {
		t.Errorf("WindowSize: got %d, want 10", cfg.WindowSize)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := map[string]map[string]string{
		"window too small":        {"ANALYTICS_WINDOW": "1"},
		"window below drift fill": {"ANALYTICS_WINDOW": "9"},
		"negative drift":          {"DRIFT_THRESHOLD": "-1"},
		"negative workers":        {"ANALYTICS_WORKERS": "-3"},
		"negative ttl":            {"SUMMARY_TTL": "-5s"},
		"topic without room slot": {"MQTT_BROKER": "tcp://localhost:1883", "MQTT_PREDICTION_TOPIC": "occupancy/out"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}
