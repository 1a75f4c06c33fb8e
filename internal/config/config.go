package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/risk-map-service/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream risk service.
	UpstreamBaseURL string
	UpstreamTimeout time.Duration

	RefreshInterval time.Duration

	// Render policy.
	BinStep       float64
	MaxBins       int
	FallbackMonth string
	DefaultWindow domain.Window
	DefaultQuery  string

	// Overlay fan-out.
	KafkaEnabled      bool
	KafkaBrokers      []string
	KafkaOverlayTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	upstreamTimeout, err := parsePositiveDuration("UPSTREAM_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	refreshInterval, err := parsePositiveDuration("REFRESH_INTERVAL", "60s")
	if err != nil {
		return nil, err
	}

	binStep, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("BIN_STEP", "0.003"), 64)
	if err != nil || binStep <= 0 || binStep > 1 {
		return nil, errors.New("invalid BIN_STEP: must be a number in (0, 1]")
	}

	maxBins, err := strconv.Atoi(sharedcfg.EnvOrDefault("MAX_BINS", strconv.Itoa(domain.DefaultMaxBins)))
	if err != nil || maxBins < 1 || maxBins > 100000 {
		return nil, errors.New("invalid MAX_BINS: must be 1-100000")
	}

	window, err := domain.ParseWindow(sharedcfg.EnvOrDefault("DEFAULT_WINDOW", "6h"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_WINDOW: %w", err)
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		UpstreamBaseURL: strings.TrimRight(sharedcfg.EnvOrDefault("UPSTREAM_BASE_URL", "http://localhost:8000"), "/"),
		UpstreamTimeout: upstreamTimeout,
		RefreshInterval: refreshInterval,

		BinStep:       binStep,
		MaxBins:       maxBins,
		FallbackMonth: strings.TrimSpace(sharedcfg.EnvOrDefault("FALLBACK_MONTH", domain.DefaultMonth)),
		DefaultWindow: window,
		DefaultQuery:  strings.TrimSpace(sharedcfg.EnvOrDefault("DEFAULT_QUERY", domain.DefaultRiskQuery)),

		KafkaEnabled:      kafkaEnabled,
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaOverlayTopic: sharedcfg.EnvOrDefault("KAFKA_OVERLAY_TOPIC", "risk-map-overlay"),
	}

	if u, err := url.Parse(cfg.UpstreamBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("invalid UPSTREAM_BASE_URL: must be an absolute http(s) URL")
	}
	if cfg.FallbackMonth == "" {
		return nil, errors.New("FALLBACK_MONTH must not be empty")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaOverlayTopic == "" {
		return nil, errors.New("KAFKA_OVERLAY_TOPIC is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

// BinConfig returns the binning policy derived from the environment.
func (c *Config) BinConfig() domain.BinConfig {
	b := domain.DefaultBinConfig()
	b.Step = c.BinStep
	b.MaxBins = c.MaxBins
	return b
}

// RenderOptions returns the production render policy with the configured bins.
func (c *Config) RenderOptions() domain.RenderOptions {
	opts := domain.DefaultRenderOptions()
	opts.Bins = c.BinConfig()
	return opts
}

// DefaultFilters returns the filter state new coordinators start with.
func (c *Config) DefaultFilters() domain.FilterState {
	f := domain.DefaultFilterState()
	f.Window = c.DefaultWindow
	f.Month = c.FallbackMonth
	f.Query = c.DefaultQuery
	return f
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}
