package cache

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gocrud/container/database"
	"github.com/gocrud/container/di"
	"github.com/gocrud/container/etcd"
	"github.com/gocrud/container/logging"
	"github.com/gocrud/container/mongodb"
	"github.com/gocrud/container/redis"
	"github.com/samber/lo"
)

// Settings 缓存后端配置，对应配置文件中的 cache 节
type Settings struct {
	Driver   string           `json:"driver"`
	Key      string           `json:"key"`
	Path     string           `json:"path"`
	TTL      string           `json:"ttl"`
	Redis    RedisSettings    `json:"redis"`
	Etcd     EtcdSettings     `json:"etcd"`
	Database DatabaseSettings `json:"database"`
	Mongo    MongoSettings    `json:"mongo"`
}

type RedisSettings struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type EtcdSettings struct {
	Endpoints []string `json:"endpoints"`
	Username  string   `json:"username"`
	Password  string   `json:"password"`
}

type DatabaseSettings struct {
	DSN string `json:"dsn"`
}

type MongoSettings struct {
	URI        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
}

// Backend 打开的缓存后端，Close 释放底层连接
type Backend struct {
	di.Cache
	Driver string

	closeFn func() error
}

// Close 关闭后端连接
func (b *Backend) Close() error {
	if b.closeFn == nil {
		return nil
	}
	return b.closeFn()
}

type opener func(ctx context.Context, s Settings) (di.Cache, func() error, error)

var openers = map[string]opener{
	"memory":  openMemory,
	"file":    openFile,
	"redis":   openRedis,
	"etcd":    openEtcd,
	"sqlite":  openDatabase,
	"mongodb": openMongo,
}

// Drivers 返回支持的驱动名称
func Drivers() []string {
	names := lo.Keys(openers)
	slices.Sort(names)
	return names
}

// Open 按 Settings.Driver 打开缓存后端
func Open(ctx context.Context, s Settings, logger logging.Logger) (*Backend, error) {
	driver := strings.ToLower(lo.Ternary(s.Driver != "", s.Driver, "file"))
	open, ok := openers[driver]
	if !ok {
		return nil, fmt.Errorf("cache: unknown driver %q (supported: %s)", driver, strings.Join(Drivers(), ", "))
	}

	c, closeFn, err := open(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", driver, err)
	}

	if logger != nil {
		logger.Info("Opened container cache", logging.Field{Key: "driver", Value: driver})
	}
	return &Backend{Cache: c, Driver: driver, closeFn: closeFn}, nil
}

func openMemory(context.Context, Settings) (di.Cache, func() error, error) {
	return NewMemory(), nil, nil
}

func openFile(_ context.Context, s Settings) (di.Cache, func() error, error) {
	path := lo.Ternary(s.Path != "", s.Path, "container.cache.json")
	return NewFile(path), nil, nil
}

func openRedis(ctx context.Context, s Settings) (di.Cache, func() error, error) {
	ttl, err := parseTTL(s.TTL)
	if err != nil {
		return nil, nil, err
	}

	opts := redis.NewDefaultOptions()
	if s.Redis.Addr != "" {
		opts.Addr = s.Redis.Addr
	}
	opts.Password = s.Redis.Password
	opts.DB = s.Redis.DB

	client, err := redis.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return redis.NewCache(client, s.Key, ttl), client.Close, nil
}

func openEtcd(ctx context.Context, s Settings) (di.Cache, func() error, error) {
	opts := etcd.NewDefaultOptions()
	if len(s.Etcd.Endpoints) > 0 {
		opts.Endpoints = s.Etcd.Endpoints
	}
	opts.Username = s.Etcd.Username
	opts.Password = s.Etcd.Password

	client, err := etcd.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return etcd.NewCache(client, s.Key), client.Close, nil
}

func openDatabase(_ context.Context, s Settings) (di.Cache, func() error, error) {
	dsn := lo.Ternary(s.Database.DSN != "", s.Database.DSN, "container.cache.db")
	db, err := database.Open(database.NewSqliteOptions(dsn))
	if err != nil {
		return nil, nil, err
	}
	c, err := database.NewCache(db, s.Key)
	if err != nil {
		database.Close(db)
		return nil, nil, err
	}
	return c, func() error { return database.Close(db) }, nil
}

func openMongo(ctx context.Context, s Settings) (di.Cache, func() error, error) {
	opts := mongodb.NewDefaultOptions(s.Mongo.URI)
	if s.Mongo.Database != "" {
		opts.Database = s.Mongo.Database
	}
	if s.Mongo.Collection != "" {
		opts.Collection = s.Mongo.Collection
	}

	client, err := mongodb.Connect(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	coll := client.Database(opts.Database).Collection(opts.Collection)
	closeFn := func() error { return client.Disconnect(context.Background()) }
	return mongodb.NewCache(coll, s.Key), closeFn, nil
}

func parseTTL(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	ttl, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid ttl %q: %w", s, err)
	}
	return ttl, nil
}
