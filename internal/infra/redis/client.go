package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps Redis operations for the telemetry event pipeline.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// PushEvent prepends a serialized event to the bounded event list.
// The list is trimmed to maxLen so an unread backlog cannot grow
// without bound.
func (c *Client) PushEvent(ctx context.Context, key string, payload []byte, maxLen int64) error {
	if err := c.rdb.LPush(ctx, key, payload).Err(); err != nil {
		return fmt.Errorf("lpush failed: %w", err)
	}
	if maxLen > 0 {
		if err := c.rdb.LTrim(ctx, key, 0, maxLen-1).Err(); err != nil {
			return fmt.Errorf("ltrim failed: %w", err)
		}
	}
	return nil
}

// RecentEvents returns up to limit of the most recent events.
func (c *Client) RecentEvents(ctx context.Context, key string, limit int64) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	return c.rdb.LRange(ctx, key, 0, limit-1).Result()
}
