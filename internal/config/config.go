package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	TargetHost            string        `mapstructure:"target_host"`
	TargetPort            int           `mapstructure:"target_port"`
	RequestTimeoutSeconds int64         `mapstructure:"request_timeout_seconds"`
	RequestTimeout        time.Duration `mapstructure:"-"`

	SinksFile string `mapstructure:"sinks_file"`

	HistoryStore           string        `mapstructure:"history_store"`
	HistoryPath            string        `mapstructure:"history_path"`
	RedisAddr              string        `mapstructure:"redis_addr"`
	RedisPassword          string        `mapstructure:"redis_password"`
	RedisDB                int           `mapstructure:"redis_db"`
	HistoryTTLSeconds      int64         `mapstructure:"history_ttl_seconds"`
	HistoryCleanupSeconds  int64         `mapstructure:"history_cleanup_interval_seconds"`
	HistoryMaxRuns         int           `mapstructure:"history_max_runs"`
	HistoryListLimit       int           `mapstructure:"history_list_limit"`
	HistoryTTL             time.Duration `mapstructure:"-"`
	HistoryCleanupInterval time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "genprobe")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("target_host", "127.0.0.1")
	v.SetDefault("target_port", 8000)
	v.SetDefault("request_timeout_seconds", 0) // 0 blocks until the transport gives up
	v.SetDefault("sinks_file", "")
	v.SetDefault("history_store", "none")
	v.SetDefault("history_path", "./data/genprobe.db")
	v.SetDefault("redis_addr", "127.0.0.1:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("history_ttl_seconds", int64((7*24*time.Hour)/time.Second))
	v.SetDefault("history_cleanup_interval_seconds", int64((12*time.Hour)/time.Second))
	v.SetDefault("history_max_runs", 512)
	v.SetDefault("history_list_limit", 20)

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.TargetHost == "" {
		return nil, fmt.Errorf("invalid target_host (must not be empty)")
	}
	if cfg.TargetPort <= 0 || cfg.TargetPort > 65535 {
		return nil, fmt.Errorf("invalid target_port %d (must be in 1..65535)", cfg.TargetPort)
	}
	if cfg.RequestTimeoutSeconds < 0 {
		return nil, fmt.Errorf("invalid request_timeout_seconds (must be zero or positive)")
	}
	cfg.RequestTimeout = time.Duration(cfg.RequestTimeoutSeconds) * time.Second

	if cfg.HistoryTTLSeconds <= 0 {
		return nil, fmt.Errorf("invalid history_ttl_seconds (must be positive seconds)")
	}
	if cfg.HistoryCleanupSeconds <= 0 {
		return nil, fmt.Errorf("invalid history_cleanup_interval_seconds (must be positive seconds)")
	}
	if cfg.HistoryMaxRuns <= 0 {
		return nil, fmt.Errorf("invalid history_max_runs (must be positive)")
	}
	if cfg.HistoryListLimit <= 0 {
		return nil, fmt.Errorf("invalid history_list_limit (must be positive)")
	}
	cfg.HistoryTTL = time.Duration(cfg.HistoryTTLSeconds) * time.Second
	cfg.HistoryCleanupInterval = time.Duration(cfg.HistoryCleanupSeconds) * time.Second

	return &cfg, nil
}

// Redacted returns a copy of the config with credential fields masked,
// safe to log at startup.
func (c *Config) Redacted() Config {
	out := *c
	if out.RedisPassword != "" {
		out.RedisPassword = "****"
	}
	return out
}

// TargetBaseURL composes the generate service base URL from host and port.
func (c *Config) TargetBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.TargetHost, c.TargetPort)
}
