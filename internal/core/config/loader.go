package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Gateway.RequestTimeout == 0 {
		cfg.Gateway.RequestTimeout = 10 * time.Second
	}
	if cfg.Gateway.MaxRetryAttempts == 0 {
		cfg.Gateway.MaxRetryAttempts = 3
	}
	if cfg.Gateway.HealthCheckInterval == 0 {
		cfg.Gateway.HealthCheckInterval = 30 * time.Second
	}
	if cfg.Gateway.HealthCacheTTL == 0 {
		cfg.Gateway.HealthCacheTTL = 5 * time.Second
	}
	if cfg.Gateway.MockURL == "" {
		cfg.Gateway.MockURL = "http://localhost:4010"
	}
	if cfg.Telemetry.EventKey == "" {
		cfg.Telemetry.EventKey = "console:events"
	}
	if cfg.Telemetry.MaxEvents == 0 {
		cfg.Telemetry.MaxEvents = 10000
	}
}

// Validate rejects configurations the client cannot start with.
// These are fatal at startup, never a runtime error category.
func (c *AppConfig) Validate() error {
	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway.base_url is required")
	}
	if err := validateURL(c.Gateway.BaseURL); err != nil {
		return fmt.Errorf("gateway.base_url: %w", err)
	}
	if err := validateURL(c.Gateway.MockURL); err != nil {
		return fmt.Errorf("gateway.mock_url: %w", err)
	}
	if c.Gateway.RequestTimeout < 0 {
		return fmt.Errorf("gateway.request_timeout must not be negative")
	}
	if c.Gateway.MaxRetryAttempts < 0 {
		return fmt.Errorf("gateway.max_retry_attempts must not be negative")
	}
	if c.Gateway.HealthCacheTTL <= 0 {
		return fmt.Errorf("gateway.health_cache_ttl must be positive")
	}
	if c.Gateway.HealthCheckInterval <= 0 {
		return fmt.Errorf("gateway.health_check_interval must be positive")
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}
