package etcd

import (
	"context"
	"fmt"

	"github.com/gocrud/container/di"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultKey 快照默认保存的键
const DefaultKey = "/di/container"

// Cache 把容器快照保存在单个 etcd 键中
type Cache struct {
	kv  clientv3.KV
	key string
}

// NewCache 创建 etcd 缓存
func NewCache(kv clientv3.KV, key string) *Cache {
	if key == "" {
		key = DefaultKey
	}
	return &Cache{kv: kv, key: key}
}

func (c *Cache) Load(ctx context.Context) ([]byte, error) {
	resp, err := c.kv.Get(ctx, c.key)
	if err != nil {
		return nil, fmt.Errorf("etcd: get %q: %w", c.key, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("%w: etcd key %q", di.ErrCacheDataNotFound, c.key)
	}
	return resp.Kvs[0].Value, nil
}

func (c *Cache) Save(ctx context.Context, data []byte) error {
	if _, err := c.kv.Put(ctx, c.key, string(data)); err != nil {
		return fmt.Errorf("etcd: put %q: %w", c.key, err)
	}
	return nil
}

func (c *Cache) Flush(ctx context.Context) error {
	if _, err := c.kv.Delete(ctx, c.key); err != nil {
		return fmt.Errorf("etcd: delete %q: %w", c.key, err)
	}
	return nil
}
