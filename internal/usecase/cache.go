package usecase

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache is the key/value surface shared by the analysis and account flows:
// result caching, processing markers and one-time reset tokens.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	// GetDel reads and removes a key atomically. Missing keys yield redis.Nil.
	GetDel(ctx context.Context, key string) (string, error)
}

// RedisCache implements Cache on any go-redis client, single node or cluster.
type RedisCache struct {
	cmd redis.Cmdable
}

func NewRedisCache(cmd redis.Cmdable) *RedisCache {
	return &RedisCache{cmd: cmd}
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.cmd.Set(ctx, key, value, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.cmd.Get(ctx, key).Result()
}

func (c *RedisCache) GetDel(ctx context.Context, key string) (string, error) {
	return c.cmd.GetDel(ctx, key).Result()
}
