package clients

import (
	"context"
	"errors"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"condoledger/pkg/cache/redis"
)

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration

	Prefix string
}

type RedisClient struct {
	raw    *redis.Client
	prefix string
}

func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	rdb, err := redis.NewRedisConnection(redis.ConnectionInfo{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: cfg.DialTimeout,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "condoledger_"
	}

	return &RedisClient{
		raw:    rdb,
		prefix: prefix,
	}, nil
}

func (c *RedisClient) Close() {
	if c.raw == nil {
		return
	}
	redis.Close(c.raw)
}

func (c *RedisClient) withPrefix(key string) string {
	return c.prefix + key
}

func (c *RedisClient) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.raw.Set(ctx, c.withPrefix(key), value, ttl).Err()
}

// Get returns the value for key, or ("", nil) when the key does not exist.
func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := c.raw.Get(ctx, c.withPrefix(key)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return val, err
}

// Keys returns the keys matching pattern, with the client prefix stripped.
func (c *RedisClient) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := c.raw.Keys(ctx, c.withPrefix(pattern)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, c.prefix))
	}
	return out, nil
}

func (c *RedisClient) Del(ctx context.Context, key string) error {
	return c.raw.Del(ctx, c.withPrefix(key)).Err()
}

// AcquireLock takes a best-effort mutex via SET NX. It returns false when
// another holder owns the key. The TTL bounds how long a crashed holder can
// block others.
func (c *RedisClient) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.raw.SetNX(ctx, c.withPrefix(key), 1, ttl).Result()
}

func (c *RedisClient) ReleaseLock(ctx context.Context, key string) error {
	return c.raw.Del(ctx, c.withPrefix(key)).Err()
}
