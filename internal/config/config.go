package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// StoreDisabled is the STORE_DRIVER value that turns the analysis archive off.
const StoreDisabled = "none"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Analysis service.
	AnalysisAPIURL      string
	AnalysisTimeout     time.Duration
	AnalysisMaxAttempts int
	AnalysisHeight      int
	AirDensity          float64
	WeatherCacheSize    int

	// Selection and request validation.
	MinSelectionExtent float64
	MaxRangeDays       int

	// Heatmap overview layer.
	HeatmapRefreshSchedule string
	HeatmapFallbackFile    string

	// Analysis archive; StoreDisabled turns it off.
	StoreDriver string
	StoreDSN    string

	// Analysis-completed notifications.
	KafkaEnabled       bool
	KafkaBrokers       []string
	KafkaAnalysisTopic string
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is read first; variables already
// set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	analysisTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("ANALYSIS_TIMEOUT", "120s"))
	if err != nil || analysisTimeout <= 0 {
		return nil, errors.New("invalid ANALYSIS_TIMEOUT")
	}

	maxAttempts, err := positiveInt("ANALYSIS_MAX_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	cacheSize, err := positiveInt("WEATHER_CACHE_SIZE", 64)
	if err != nil {
		return nil, err
	}
	maxRangeDays, err := positiveInt("MAX_RANGE_DAYS", 30)
	if err != nil {
		return nil, err
	}

	height, err := strconv.Atoi(strings.TrimSuffix(sharedcfg.EnvOrDefault("ANALYSIS_HEIGHT", "10"), "m"))
	if err != nil || (height != 10 && height != 100) {
		return nil, errors.New("invalid ANALYSIS_HEIGHT")
	}

	airDensity, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("AIR_DENSITY", "1.225"), 64)
	if err != nil || airDensity <= 0 {
		return nil, errors.New("invalid AIR_DENSITY")
	}

	minExtent, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("MIN_SELECTION_EXTENT_DEG", "0.02"), 64)
	if err != nil || minExtent <= 0 {
		return nil, errors.New("invalid MIN_SELECTION_EXTENT_DEG")
	}

	schedule := sharedcfg.EnvOrDefault("HEATMAP_REFRESH_SCHEDULE", "@every 30m")
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, errors.New("invalid HEATMAP_REFRESH_SCHEDULE")
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		AnalysisAPIURL:      sharedcfg.EnvOrDefault("ANALYSIS_API_URL", "http://localhost:5000"),
		AnalysisTimeout:     analysisTimeout,
		AnalysisMaxAttempts: maxAttempts,
		AnalysisHeight:      height,
		AirDensity:          airDensity,
		WeatherCacheSize:    cacheSize,

		MinSelectionExtent: minExtent,
		MaxRangeDays:       maxRangeDays,

		HeatmapRefreshSchedule: schedule,
		HeatmapFallbackFile:    os.Getenv("HEATMAP_FALLBACK_FILE"),

		StoreDriver: sharedcfg.EnvOrDefault("STORE_DRIVER", "sqlite"),
		StoreDSN:    sharedcfg.EnvOrDefault("STORE_DSN", "file:wind-explorer.db"),

		KafkaEnabled:       os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaAnalysisTopic: sharedcfg.EnvOrDefault("KAFKA_ANALYSIS_TOPIC", "wind-analyses"),
	}

	switch cfg.StoreDriver {
	case StoreDisabled, "sqlite", "postgres":
	default:
		return nil, errors.New("invalid STORE_DRIVER")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

func positiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}
