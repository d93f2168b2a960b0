package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	productListPrefix = "products:v:"
	cacheVersionKey   = "products:version"

	DefaultTTL = 5 * time.Minute
)

// NewClient creates a Redis client and verifies connectivity.
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// ProductCache caches product list pages. Invalidation is a version bump:
// every write to products increments products:version, orphaning all keys
// built against the old version (they expire via TTL).
type ProductCache struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewProductCache(client *redis.Client, logger *zap.Logger) *ProductCache {
	return &ProductCache{redis: client, ttl: DefaultTTL, logger: logger}
}

func (c *ProductCache) listKey(version int64, page, limit int) string {
	return fmt.Sprintf("%s%d:page:%d:limit:%d", productListPrefix, version, page, limit)
}

func (c *ProductCache) version(ctx context.Context) (int64, error) {
	v, err := c.redis.Get(ctx, cacheVersionKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return v, err
}

// GetProductList retrieves a cached list page; the second return reports a hit.
func (c *ProductCache) GetProductList(ctx context.Context, page, limit int, out interface{}) bool {
	version, err := c.version(ctx)
	if err != nil {
		return false
	}

	data, err := c.redis.Get(ctx, c.listKey(version, page, limit)).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		c.logger.Warn("failed to unmarshal cached product list", zap.Error(err))
		return false
	}
	return true
}

// SetProductListAsync caches a list page off the request path.
func (c *ProductCache) SetProductListAsync(page, limit int, response interface{}) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		version, err := c.version(ctx)
		if err != nil {
			return
		}
		data, err := json.Marshal(response)
		if err != nil {
			return
		}
		if err := c.redis.Set(ctx, c.listKey(version, page, limit), data, c.ttl).Err(); err != nil {
			c.logger.Warn("failed to cache product list", zap.Error(err))
		}
	}()
}

// Invalidate bumps the cache version after any product write.
func (c *ProductCache) Invalidate(ctx context.Context) {
	if err := c.redis.Incr(ctx, cacheVersionKey).Err(); err != nil {
		c.logger.Warn("failed to bump product cache version", zap.Error(err))
	}
}
