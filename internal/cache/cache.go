// Package cache is a read-through Redis cache for marshaled action results.
// The store stays authoritative: a missing or unreachable Redis just turns
// every lookup into a miss.
package cache

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at url. An empty url returns a disabled cache whose
// methods are all safe no-ops.
func New(url string, ttl time.Duration) (*Cache, error) {
	if url == "" {
		return &Cache{ttl: ttl}, nil
	}

	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	log.Println("[Cache] Connected to Redis")
	return &Cache{client: client, ttl: ttl}, nil
}

// Enabled reports whether a Redis connection is behind this cache.
func (c *Cache) Enabled() bool {
	return c != nil && c.client != nil
}

// Get returns the cached bytes for key, or ok=false on a miss, a disabled
// cache, or any Redis error. Errors other than a plain miss are logged.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if !c.Enabled() {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Printf("[Cache] GET %s: %v\n", key, err)
		return nil, false
	}
	return data, true
}

// Set stores val under key with the configured TTL. Failures are logged and
// swallowed; the caller already has the value.
func (c *Cache) Set(ctx context.Context, key string, val []byte) {
	if !c.Enabled() {
		return
	}
	if err := c.client.Set(ctx, key, val, c.ttl).Err(); err != nil {
		log.Printf("[Cache] SET %s: %v\n", key, err)
	}
}

// Ping reports Redis health for the /health endpoint.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return fmt.Errorf("cache disabled")
	}
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}
