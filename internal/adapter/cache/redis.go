// Package cache provides the Redis-backed response cache.
package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillmatch/assessment-recommender/internal/domain"
)

// Redis implements domain.ResponseCache on a Redis keyspace. Entries are
// request fingerprints mapped to serialized responses with a TTL.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis constructs a response cache from a Redis URL, e.g.
// redis://localhost:6379/0.
func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("op=cache.parse_url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts), prefix: "rec:resp:"}, nil
}

// NewRedisWithClient wraps an existing client; used by tests.
func NewRedisWithClient(c *redis.Client) *Redis {
	return &Redis{client: c, prefix: "rec:resp:"}
}

// Get returns the cached value for key. A miss is (nil, false, nil).
func (r *Redis) Get(ctx domain.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("op=cache.get: %w", err)
	}
	return v, true, nil
}

// Set stores value under key for ttl.
func (r *Redis) Set(ctx domain.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("op=cache.set: %w", err)
	}
	return nil
}

// Ping checks connectivity; used by the readiness probe.
func (r *Redis) Ping(ctx domain.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("op=cache.ping: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error { return r.client.Close() }
