package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"occupancy-predictor/analytics"
)

// Default values for the service configuration.
const (
	DefaultHTTPAddr            = ":8000"
	DefaultManifestPath        = "./artifacts/pipeline.yaml"
	DefaultRedisAddr           = ""
	DefaultSummaryTTL          = 5 * time.Minute
	DefaultWindowSize          = 50
	DefaultDriftThreshold      = 3.0
	DefaultMQTTClientID        = "occupancy-predictor"
	DefaultMQTTReadingTopic    = "sensors/+/reading"
	DefaultMQTTPredictionTopic = "occupancy/{room_id}/prediction"
	DefaultShutdownTimeout     = 30 * time.Second
)

type Config struct {
	// HTTP
	HTTPAddr        string
	ShutdownTimeout time.Duration
	LogLevel        slog.Level

	// Pipeline artifact
	ManifestPath string
	WatchModel   bool

	// Redis summary store; empty address keeps summaries in memory
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SummaryTTL    time.Duration

	// Analytics
	AnalyticsWorkers int
	WindowSize       int
	DriftThreshold   float64

	// MQTT ingest; empty broker disables it
	MQTTBroker          string
	MQTTClientID        string
	MQTTUsername        string
	MQTTPassword        string
	MQTTReadingTopic    string
	MQTTPredictionTopic string
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", DefaultHTTPAddr),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
		LogLevel:        getEnvLevel("LOG_LEVEL", slog.LevelInfo),

		ManifestPath: getEnv("MODEL_MANIFEST", DefaultManifestPath),
		WatchModel:   getEnvBool("MODEL_WATCH", false),

		RedisAddr:     getEnv("REDIS_ADDR", DefaultRedisAddr),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		SummaryTTL:    getEnvDuration("SUMMARY_TTL", DefaultSummaryTTL),

		AnalyticsWorkers: getEnvInt("ANALYTICS_WORKERS", 0),
		WindowSize:       getEnvInt("ANALYTICS_WINDOW", DefaultWindowSize),
		DriftThreshold:   getEnvFloat("DRIFT_THRESHOLD", DefaultDriftThreshold),

		MQTTBroker:          getEnv("MQTT_BROKER", ""),
		MQTTClientID:        getEnv("MQTT_CLIENT_ID", DefaultMQTTClientID),
		MQTTUsername:        getEnv("MQTT_USERNAME", ""),
		MQTTPassword:        getEnv("MQTT_PASSWORD", ""),
		MQTTReadingTopic:    getEnv("MQTT_READING_TOPIC", DefaultMQTTReadingTopic),
		MQTTPredictionTopic: getEnv("MQTT_PREDICTION_TOPIC", DefaultMQTTPredictionTopic),
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.ManifestPath == "" {
		return fmt.Errorf("MODEL_MANIFEST must not be empty")
	}
	if cfg.SummaryTTL <= 0 {
		return fmt.Errorf("SUMMARY_TTL must be positive, got %v", cfg.SummaryTTL)
	}
	if cfg.WindowSize < analytics.MinDriftSamples {
		return fmt.Errorf("ANALYTICS_WINDOW must be at least %d for drift detection, got %d",
			analytics.MinDriftSamples, cfg.WindowSize)
	}
	if cfg.DriftThreshold <= 0 {
		return fmt.Errorf("DRIFT_THRESHOLD must be positive, got %v", cfg.DriftThreshold)
	}
	if cfg.AnalyticsWorkers < 0 {
		return fmt.Errorf("ANALYTICS_WORKERS must not be negative, got %d", cfg.AnalyticsWorkers)
	}
	if cfg.MQTTBroker != "" && !strings.Contains(cfg.MQTTPredictionTopic, "{room_id}") {
		return fmt.Errorf("MQTT_PREDICTION_TOPIC %q must contain {room_id}", cfg.MQTTPredictionTopic)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("config: invalid integer, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		slog.Warn("config: invalid float, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("config: invalid bool, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return b
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		slog.Warn("config: invalid duration, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return d
}

func getEnvLevel(key string, defaultValue slog.Level) slog.Level {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		slog.Warn("config: invalid log level, using default", "key", key, "value", value)
		return defaultValue
	}
	return level
}
