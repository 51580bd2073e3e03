package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	// Imagery catalog configuration.
	ImageryBaseURL    string
	ImageryToken      string
	ImageryTimeout    time.Duration
	ImageryMaxRetries int
	ImageryCacheSize  int

	// Footprint provider configuration.
	FootprintProvider string // default provider when a request names none
	OverpassURL       string
	OpenBuildingsURL  string
	GBAURL            string
	FootprintTimeout  time.Duration

	// Population source configuration.
	PopulationBaseURL string
	PopulationTimeout time.Duration

	// Analysis defaults.
	TThreshold float64 // default t-score cutoff for requests that omit one
}

// Footprint provider names accepted by FOOTPRINT_PROVIDER and on requests.
const (
	ProviderOpenBuildings = "open-buildings"
	ProviderOSM           = "osm"
	ProviderGBA           = "gba"
)

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	imageryTimeout, err := parseDurationEnv("IMAGERY_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	footprintTimeout, err := parseDurationEnv("FOOTPRINT_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}
	populationTimeout, err := parseDurationEnv("POPULATION_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	maxRetries, err := parseIntEnv("IMAGERY_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseIntEnv("IMAGERY_CACHE_SIZE", 100)
	if err != nil {
		return nil, err
	}

	threshold, err := parseFloatEnv("T_THRESHOLD", 3.5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:     parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic: envOrDefault("KAFKA_SOURCE_TOPIC", "analysis-requests"),
		KafkaSinkTopic:   envOrDefault("KAFKA_SINK_TOPIC", "damage-reports"),
		KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "sar-damage-service"),
		HTTPAddr:         envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogFormat:        envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:  shutdownTimeout,

		ImageryBaseURL:    envOrDefault("IMAGERY_BASE_URL", "http://localhost:9090"),
		ImageryToken:      os.Getenv("IMAGERY_TOKEN"),
		ImageryTimeout:    imageryTimeout,
		ImageryMaxRetries: maxRetries,
		ImageryCacheSize:  cacheSize,

		FootprintProvider: envOrDefault("FOOTPRINT_PROVIDER", ProviderOpenBuildings),
		OverpassURL:       envOrDefault("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
		OpenBuildingsURL:  envOrDefault("OPEN_BUILDINGS_URL", "http://localhost:9091"),
		GBAURL:            envOrDefault("GBA_URL", "http://localhost:9092"),
		FootprintTimeout:  footprintTimeout,

		PopulationBaseURL: envOrDefault("POPULATION_BASE_URL", "http://localhost:9093"),
		PopulationTimeout: populationTimeout,

		TThreshold: threshold,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	switch cfg.FootprintProvider {
	case ProviderOpenBuildings, ProviderOSM, ProviderGBA:
	default:
		return nil, fmt.Errorf("FOOTPRINT_PROVIDER must be one of %s, %s, %s",
			ProviderOpenBuildings, ProviderOSM, ProviderGBA)
	}
	if cfg.TThreshold <= 0 {
		return nil, errors.New("T_THRESHOLD must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}

func parseDurationEnv(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseFloatEnv(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}
