package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the dispatchd settings. Values are read from a dispatchd.yaml
// file (if present) and overridden by DISPATCH_* environment variables, e.g.
// DISPATCH_LISTEN_ADDR or DISPATCH_BUS_REDIS_ADDR.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	PathPrefix string `mapstructure:"path_prefix"`
	LogLevel   string `mapstructure:"log_level"`

	Bus BusConfig `mapstructure:"bus"`

	Concurrency        int           `mapstructure:"concurrency"`
	PollInterval       time.Duration `mapstructure:"poll_interval"`
	RetryBatchSize     int           `mapstructure:"retry_batch_size"`
	SignatureAlgorithm string        `mapstructure:"signature_algorithm"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`

	// RegisterBuiltin registers the built-in banking event types on boot.
	RegisterBuiltin bool `mapstructure:"register_builtin"`
}

// BusConfig selects and configures the event bus backend.
type BusConfig struct {
	// Backend is "memory" or "redis".
	Backend string `mapstructure:"backend"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisStream   string `mapstructure:"redis_stream"`
}

func loadConfig() (*Config, error) {
	v := viper.New()

	v.SetConfigName("dispatchd")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/dispatchd")

	v.SetEnvPrefix("DISPATCH")
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("path_prefix", "/webhooks")
	v.SetDefault("log_level", "info")
	v.SetDefault("bus.backend", "memory")
	v.SetDefault("bus.redis_addr", "localhost:6379")
	v.SetDefault("register_builtin", true)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, everything has env or default values.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}
