package config

import (
	"github.com/spf13/viper"

	"quotebridge/internal/types"
)

// Config holds the application configuration.
type Config struct {
	Log    LogConfig              `mapstructure:"log"`
	Retry  RetryConfig            `mapstructure:"retry"`
	Venues map[string]VenueConfig `mapstructure:"venues"`
	Paper  PaperConfig            `mapstructure:"paper"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
}

// RetryConfig holds the retry-executor settings used for connection dials.
type RetryConfig struct {
	MaxRetries int `mapstructure:"max_retries"`
	DelayMs    int `mapstructure:"delay_ms"`
}

// VenueConfig holds per-exchange connection settings.
type VenueConfig struct {
	WSURL           string `mapstructure:"ws_url"`
	APIKey          string `mapstructure:"api_key"`
	APISecret       string `mapstructure:"api_secret"`
	PingIntervalSec int    `mapstructure:"ping_interval_sec"`
	PostAuthDelayMs int    `mapstructure:"post_auth_delay_ms"`
}

// PaperConfig holds the paper-broker simulation settings.
type PaperConfig struct {
	RestLatencyMinMs   int     `mapstructure:"rest_latency_min_ms"`
	RestLatencyMaxMs   int     `mapstructure:"rest_latency_max_ms"`
	StreamLatencyMinMs int     `mapstructure:"stream_latency_min_ms"`
	StreamLatencyMaxMs int     `mapstructure:"stream_latency_max_ms"`
	CommissionRate     float64 `mapstructure:"commission_rate"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("log.level", "info")
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.delay_ms", 500)

	if err := v.ReadInConfig(); err != nil {
		return nil, types.NewError(types.ErrKindConfig, "failed to read config file", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, types.NewError(types.ErrKindConfig, "failed to unmarshal config", err)
	}

	if cfg.Retry.MaxRetries < 0 {
		return nil, types.Errorf(types.ErrKindConfig, "retry.max_retries must be non-negative, got %d", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.DelayMs <= 0 {
		return nil, types.Errorf(types.ErrKindConfig, "retry.delay_ms must be positive, got %d", cfg.Retry.DelayMs)
	}

	return &cfg, nil
}
