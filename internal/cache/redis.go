package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is not cached.
var ErrMiss = redis.Nil

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(ctx context.Context, host string, port int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", host, port),
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Println("✅ Connected to Redis")

	return &RedisCache{
		client: client,
		ttl:    ttl,
	}, nil
}

// Get retrieves value from cache
func (c *RedisCache) Get(ctx context.Context, key string, dest any) error {
	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return err // ErrMiss if key doesn't exist
	}

	if err := json.Unmarshal(val, dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached %s: %w", key, err)
	}
	return nil
}

// setIfGeneration writes KEYS[1] only while its generation counter
// (KEYS[2]) still equals ARGV[1].
var setIfGeneration = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

func generationKey(key string) string {
	return key + ":gen"
}

// Generation returns the invalidation counter of key, 0 if it was never
// invalidated. Read it before loading the value you intend to cache.
func (c *RedisCache) Generation(ctx context.Context, key string) (int64, error) {
	gen, err := c.client.Get(ctx, generationKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// SetIfGeneration caches value under key unless key was invalidated since
// gen was read. It reports whether the value was stored.
func (c *RedisCache) SetIfGeneration(ctx context.Context, key string, gen int64, value any) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("failed to marshal value: %w", err)
	}

	stored, err := setIfGeneration.Run(ctx, c.client,
		[]string{key, generationKey(key)},
		strconv.FormatInt(gen, 10), data, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

// Invalidate removes keys and bumps their generations in one MULTI block,
// so a fill that loaded its value before the call can no longer store it.
func (c *RedisCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, generationKey(key))
			pipe.Del(ctx, key)
		}
		return nil
	})
	return err
}

// DeleteByPattern removes all keys matching pattern. It walks the keyspace
// with SCAN so a large cache doesn't block the server.
func (c *RedisCache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("failed to scan keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("failed to delete keys: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}

// IsMiss reports whether err means the key was not cached.
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
