package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocrud/container/di"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// DefaultKey 快照文档默认的 _id
const DefaultKey = "container"

type cacheDocument struct {
	ID        string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Cache 把容器快照保存为集合中的一个文档
type Cache struct {
	coll *mongo.Collection
	key  string
}

// NewCache 创建 MongoDB 缓存
func NewCache(coll *mongo.Collection, key string) *Cache {
	if key == "" {
		key = DefaultKey
	}
	return &Cache{coll: coll, key: key}
}

func (c *Cache) Load(ctx context.Context) ([]byte, error) {
	var doc cacheDocument
	err := c.coll.FindOne(ctx, bson.D{{Key: "_id", Value: c.key}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: mongo document %q", di.ErrCacheDataNotFound, c.key)
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb: find %q: %w", c.key, err)
	}
	return doc.Data, nil
}

func (c *Cache) Save(ctx context.Context, data []byte) error {
	doc := cacheDocument{ID: c.key, Data: data, UpdatedAt: time.Now().UTC()}
	_, err := c.coll.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: c.key}},
		doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb: replace %q: %w", c.key, err)
	}
	return nil
}

func (c *Cache) Flush(ctx context.Context) error {
	if _, err := c.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: c.key}}); err != nil {
		return fmt.Errorf("mongodb: delete %q: %w", c.key, err)
	}
	return nil
}
