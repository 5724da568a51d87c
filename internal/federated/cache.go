package federated

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// CertCache shares the fetched key set between server instances.
type CertCache interface {
	Get(ctx context.Context, key string) ([]byte, time.Duration, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

// ErrCacheMiss is returned by CertCache.Get when nothing is stored.
var ErrCacheMiss = errors.New("cache miss")

// RedisCertCache stores the raw cert document in Redis with the upstream TTL.
type RedisCertCache struct {
	rdb *redis.Client
}

// NewRedisCertCache stores certificate sets under the caller's key.
func NewRedisCertCache(rdb *redis.Client) *RedisCertCache { return &RedisCertCache{rdb: rdb} }

func (c *RedisCertCache) Get(ctx context.Context, key string) ([]byte, time.Duration, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, 0, ErrCacheMiss
	}
	if err != nil {
		return nil, 0, err
	}
	ttl, err := c.rdb.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = time.Minute
	}
	return raw, ttl, nil
}

func (c *RedisCertCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}
