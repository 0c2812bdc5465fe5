// Package redis holds the shared redis connection used by the certificate
// cache. The client is optional: an empty URL means the ledger runs without
// redis and verification always hits the store.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// Client wraps go-redis with a connect-time liveness check.
type Client struct {
	*redis.Client
}

// New connects to the redis instance named by url, or returns (nil, nil)
// when url is empty and redis is simply not part of the deployment.
func New(url string) (*Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports connection liveness for readiness checks.
func (c *Client) Health(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.Ping(ctx).Err()
}
