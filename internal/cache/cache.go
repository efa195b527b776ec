package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// ErrMiss signals a cache miss in a typed way so callers can tell misses from
// transport errors.
var ErrMiss = errors.New("cache: miss")

// Cache is a minimal key-value contract. Implementations are concurrency-safe.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Close() error
}

// New builds a redis-backed cache, or a noop cache when the URL is empty or
// the backend is unreachable.
func New(redisURL string) Cache {
	if redisURL == "" {
		log.Printf("cache disabled, using noop: empty redis url")
		return noopCache{}
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Printf("cache disabled, using noop: %v", err)
		return noopCache{}
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		log.Printf("cache disabled, using noop: %v", err)
		return noopCache{}
	}

	log.Printf("cache connected")
	return &redisCache{client: client}
}

type redisCache struct {
	client *redis.Client
}

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	res, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache get %q: %w", key, err)
	}
	return res, nil
}

func (c *redisCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

type noopCache struct{}

func (noopCache) Get(ctx context.Context, key string) (string, error) { return "", ErrMiss }
func (noopCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return nil
}
func (noopCache) Close() error { return nil }
