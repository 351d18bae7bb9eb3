// Package control wires the console's components together and manages
// their lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/opsgate/console/internal/console"
	"github.com/opsgate/console/internal/core/config"
	"github.com/opsgate/console/internal/infra/gateway"
	redisclient "github.com/opsgate/console/internal/infra/redis"
	"github.com/opsgate/console/internal/infra/telemetry"
)

// Console is the main application struct that manages the client
// facade and API server lifecycle.
type Console struct {
	cfg         Config
	dispatcher  *gateway.Dispatcher
	cache       *gateway.HealthCache
	tracker     *gateway.Tracker
	server      *console.Server
	redisClient *redisclient.Client
	log         *slog.Logger

	cancelTracker context.CancelFunc
}

// Config holds the application configuration.
type Config struct {
	Port      int
	Gateway   config.GatewayConfig
	Telemetry config.TelemetryConfig
}

// NewConsole creates a Console instance with all dependencies
// initialized. Configuration errors here are fatal.
func NewConsole(cfg Config) (*Console, error) {
	backend, err := gateway.NewBackend(cfg.Gateway)
	if err != nil {
		return nil, fmt.Errorf("failed to init backend: %w", err)
	}

	sinks := telemetry.MultiSink{telemetry.LogSink{}}

	var redisClient *redisclient.Client
	if cfg.Telemetry.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Telemetry.Redis)
		if err != nil {
			// Telemetry is best-effort; a missing Redis never blocks startup.
			slog.Warn("Redis telemetry sink unavailable, events go to log only", "error", err)
		} else {
			sinks = append(sinks, telemetry.NewRedisSink(
				redisClient,
				cfg.Telemetry.EventKey,
				cfg.Telemetry.MaxEvents,
			))
			slog.Info("Using Redis telemetry sink", "key", cfg.Telemetry.EventKey)
		}
	}

	dispatcher := gateway.NewDispatcher(cfg.Gateway, backend, sinks)
	cache := gateway.NewHealthCache(dispatcher, sinks, cfg.Gateway.HealthCacheTTL)
	tracker := gateway.NewTracker(dispatcher, sinks, cfg.Gateway.HealthCheckInterval)
	server := console.NewServer(dispatcher, cache, tracker, cfg.Port)

	slog.Info("Console initialized",
		"backend", backend.Name(),
		"retry_attempts", cfg.Gateway.MaxRetryAttempts,
		"health_interval", cfg.Gateway.HealthCheckInterval,
	)

	return &Console{
		cfg:         cfg,
		dispatcher:  dispatcher,
		cache:       cache,
		tracker:     tracker,
		server:      server,
		redisClient: redisClient,
		log:         slog.Default(),
	}, nil
}

// Start launches the availability tracker and the API server.
func (c *Console) Start(ctx context.Context) error {
	trackerCtx, cancel := context.WithCancel(context.Background())
	c.cancelTracker = cancel
	c.tracker.Start(trackerCtx)

	go func() {
		c.log.Info("Console API listening", "port", c.cfg.Port)
		if err := c.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.log.Error("Console API server failed", "error", err)
		}
	}()

	return nil
}

// Stop shuts the console down gracefully.
func (c *Console) Stop(ctx context.Context) error {
	if c.cancelTracker != nil {
		c.cancelTracker()
	}

	if err := c.server.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop API server: %w", err)
	}

	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			c.log.Warn("Failed to close redis client", "error", err)
		}
	}

	return nil
}
