// Package config loads workflowd's configuration: defaults, then an
// optional TOML file, then environment variables, in that override order.
package config

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Sandbox   SandboxConfig   `toml:"sandbox"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Agents    AgentsConfig    `toml:"agents"`
	Redis     RedisConfig     `toml:"redis"`
	Slack     SlackConfig     `toml:"slack"`
	Logging   LoggingConfig   `toml:"logging"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

type ServerConfig struct {
	Addr                   string `toml:"addr"`
	Platform               string `toml:"platform"` // server, mobile, cloud_worker
	ShutdownTimeoutSeconds int    `toml:"shutdown_timeout_seconds"`
}

// ShutdownTimeout is ShutdownTimeoutSeconds as a time.Duration.
func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSeconds) * time.Second
}

type DatabaseConfig struct {
	Driver string `toml:"driver"` // sqlite, postgres
	DSN    string `toml:"dsn"`
}

type SandboxConfig struct {
	Image                 string `toml:"image"`
	DefaultMemMB          int    `toml:"default_mem_mb"`
	DefaultTimeoutSeconds int    `toml:"default_timeout_seconds"`
}

// DefaultTimeout is DefaultTimeoutSeconds as a time.Duration.
func (s SandboxConfig) DefaultTimeout() time.Duration {
	return time.Duration(s.DefaultTimeoutSeconds) * time.Second
}

type RateLimitConfig struct {
	PublicRunsPerMinute int `toml:"public_runs_per_minute"`
}

type AgentsConfig struct {
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	OpenAIAPIKey    string `toml:"openai_api_key"`
	GoogleAPIKey    string `toml:"google_api_key"`
}

type RedisConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
	Channel string `toml:"channel"`
}

type SlackConfig struct {
	Enabled bool   `toml:"enabled"`
	Token   string `toml:"token"`
	Channel string `toml:"channel"`
}

type LoggingConfig struct {
	Development bool   `toml:"development"`
	Level       string `toml:"level"`
}

type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// Default returns a Config with every field set to its baseline value.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr: ":8080", Platform: "server", ShutdownTimeoutSeconds: 10,
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "workflowd.db"},
		Sandbox: SandboxConfig{
			Image: "node:20-alpine", DefaultMemMB: 128, DefaultTimeoutSeconds: 5,
		},
		RateLimit: RateLimitConfig{PublicRunsPerMinute: 10},
		Logging:   LoggingConfig{Level: "info"},
		Metrics:   MetricsConfig{Addr: ":9090"},
	}
}

// Load reads config: defaults -> TOML file (if path is non-empty and
// readable) -> environment variables, env taking precedence.
func Load(path string) Config {
	cfg := Default()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			_ = toml.Unmarshal(data, &cfg)
		}
	}

	if v := os.Getenv("WORKFLOWD_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("WORKFLOWD_PLATFORM"); v != "" {
		cfg.Server.Platform = v
	}
	if v := os.Getenv("WORKFLOWD_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("WORKFLOWD_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("WORKFLOWD_ANTHROPIC_API_KEY"); v != "" {
		cfg.Agents.AnthropicAPIKey = v
	}
	if v := os.Getenv("WORKFLOWD_OPENAI_API_KEY"); v != "" {
		cfg.Agents.OpenAIAPIKey = v
	}
	if v := os.Getenv("WORKFLOWD_GOOGLE_API_KEY"); v != "" {
		cfg.Agents.GoogleAPIKey = v
	}
	if v := os.Getenv("WORKFLOWD_REDIS_ADDR"); v != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("WORKFLOWD_SLACK_TOKEN"); v != "" {
		cfg.Slack.Enabled = true
		cfg.Slack.Token = v
	}
	if v := os.Getenv("WORKFLOWD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if os.Getenv("WORKFLOWD_DEV") == "true" || os.Getenv("WORKFLOWD_DEV") == "1" {
		cfg.Logging.Development = true
	}

	return cfg
}
