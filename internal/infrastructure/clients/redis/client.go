// Package redis holds the connection behind the upload idempotency guard.
// It is the only Redis use in the service; nothing pipeline-critical lives
// here.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/retailiq/customer-segmentation/pkg/config"
)

const pingTimeout = 5 * time.Second

// Client wraps the Redis connection used for idempotency keys.
type Client struct {
	client *redis.Client
}

// NewClient connects and verifies the connection with a short ping. Unlike
// the Postgres archive there is no retry loop: a Redis that is down at
// startup just means duplicate uploads go undetected until it returns.
func NewClient(cfg *config.RedisConfig) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{client: client}, nil
}

// Client exposes the underlying connection for SetNX calls in the handler.
func (c *Client) Client() *redis.Client {
	return c.client
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// Ping verifies the connection is still alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
