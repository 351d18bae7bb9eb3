package config

import (
	"time"

	redisclient "github.com/opsgate/console/internal/infra/redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings for the console API.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// GatewayConfig holds settings for the backend gateway client.
// Read once at startup, never mutated afterwards.
type GatewayConfig struct {
	BaseURL             string        `yaml:"base_url"`
	MockURL             string        `yaml:"mock_url"`
	UseMock             bool          `yaml:"use_mock"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	MaxRetryAttempts    int           `yaml:"max_retry_attempts"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	HealthCacheTTL      time.Duration `yaml:"health_cache_ttl"`
}

// TelemetryConfig holds settings for the observability event sink.
// Redis is optional; with an empty URL events go to the log only.
type TelemetryConfig struct {
	Redis    redisclient.Config `yaml:"redis"`
	EventKey string             `yaml:"event_key"`
	// MaxEvents bounds the Redis event list; older entries are trimmed.
	MaxEvents int64 `yaml:"max_events"`
}
