package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/domain"
	"github.com/Takedaxz/insurance-rag-chatbot/internal/core/ports/driven"
)

// keyPrefix namespaces answer entries in a shared Redis.
const keyPrefix = "ragbot:answer:"

// scanBatch is the COUNT hint for SCAN during Purge and Len.
const scanBatch = 100

// Verify interface compliance
var _ driven.QueryCache = (*Redis)(nil)

// Redis stores answers in Redis with a TTL, so several processes can
// share one cache.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed cache.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// NewRedisFromURL parses a redis:// URL and verifies the server answers.
func NewRedisFromURL(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing redis url: %v", domain.ErrInvalidConfig, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: connecting to redis: %w", domain.ErrCache, err)
	}
	return NewRedis(client, ttl), nil
}

// Get retrieves an entry. A missing key is a miss, not an error.
func (c *Redis) Get(ctx context.Context, key string) (*domain.CacheEntry, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get: %w", domain.ErrCache, err)
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("%w: decoding entry: %w", domain.ErrCache, err)
	}
	return &entry, true, nil
}

// Put stores an entry with the cache TTL.
func (c *Redis) Put(ctx context.Context, key string, entry domain.CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("%w: encoding entry: %w", domain.ErrCache, err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("%w: set: %w", domain.ErrCache, err)
	}
	return nil
}

// Purge deletes every answer key. Other keys in the database are left alone.
func (c *Redis) Purge(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("%w: scan: %w", domain.ErrCache, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: delete: %w", domain.ErrCache, err)
	}
	return nil
}

// Len counts answer keys. It returns 0 when Redis cannot be reached.
func (c *Redis) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n := 0
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if iter.Err() != nil {
		return 0
	}
	return n
}

// Close closes the Redis client.
func (c *Redis) Close() error {
	return c.client.Close()
}
