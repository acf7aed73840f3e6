package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocrud/container/di"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultKey 快照默认保存的键
const DefaultKey = "container"

// CacheEntry container_cache 表中的一行
type CacheEntry struct {
	Key       string `gorm:"column:cache_key;primaryKey;size:191"`
	Data      []byte
	UpdatedAt time.Time
}

func (CacheEntry) TableName() string {
	return "container_cache"
}

// Cache 把容器快照保存在数据库表中，每个键一行
type Cache struct {
	db  *gorm.DB
	key string
}

// NewCache 创建数据库缓存并迁移表结构
func NewCache(db *gorm.DB, key string) (*Cache, error) {
	if key == "" {
		key = DefaultKey
	}
	if err := db.AutoMigrate(&CacheEntry{}); err != nil {
		return nil, fmt.Errorf("database: migrate container_cache: %w", err)
	}
	return &Cache{db: db, key: key}, nil
}

func (c *Cache) Load(ctx context.Context) ([]byte, error) {
	var entry CacheEntry
	err := c.db.WithContext(ctx).Where(&CacheEntry{Key: c.key}).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: database key %q", di.ErrCacheDataNotFound, c.key)
	}
	if err != nil {
		return nil, fmt.Errorf("database: load %q: %w", c.key, err)
	}
	return entry.Data, nil
}

func (c *Cache) Save(ctx context.Context, data []byte) error {
	entry := CacheEntry{Key: c.key, Data: data}
	err := c.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("database: save %q: %w", c.key, err)
	}
	return nil
}

func (c *Cache) Flush(ctx context.Context) error {
	err := c.db.WithContext(ctx).Where(&CacheEntry{Key: c.key}).Delete(&CacheEntry{}).Error
	if err != nil {
		return fmt.Errorf("database: flush %q: %w", c.key, err)
	}
	return nil
}
