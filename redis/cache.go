package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocrud/container/di"
	goredis "github.com/redis/go-redis/v9"
)

// DefaultKey 快照默认保存的键
const DefaultKey = "di:container"

// Cache 把容器快照保存在单个 Redis 键中
type Cache struct {
	client goredis.Cmdable
	key    string
	ttl    time.Duration
}

// NewCache 创建 Redis 缓存，ttl 为 0 表示不过期
func NewCache(client goredis.Cmdable, key string, ttl time.Duration) *Cache {
	if key == "" {
		key = DefaultKey
	}
	return &Cache{client: client, key: key, ttl: ttl}
}

func (c *Cache) Load(ctx context.Context) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: redis key %q", di.ErrCacheDataNotFound, c.key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get %q: %w", c.key, err)
	}
	return data, nil
}

func (c *Cache) Save(ctx context.Context, data []byte) error {
	if err := c.client.Set(ctx, c.key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set %q: %w", c.key, err)
	}
	return nil
}

func (c *Cache) Flush(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("redis: del %q: %w", c.key, err)
	}
	return nil
}
