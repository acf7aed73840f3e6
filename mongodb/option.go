package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Options MongoDB 客户端配置选项
type Options struct {
	URI         string
	Username    string
	Password    string
	Database    string
	Collection  string
	MaxPoolSize uint64
	MinPoolSize uint64
	Timeout     time.Duration
}

// NewDefaultOptions 创建默认配置
func NewDefaultOptions(uri string) *Options {
	return &Options{
		URI:         uri,
		Database:    "container",
		Collection:  "container_cache",
		MaxPoolSize: 10,
		Timeout:     10 * time.Second,
	}
}

// Validate 验证配置
func (o *Options) Validate() error {
	if o.URI == "" {
		return fmt.Errorf("mongo uri is required")
	}
	if o.Database == "" || o.Collection == "" {
		return fmt.Errorf("mongo database and collection are required")
	}
	return nil
}

// Connect 创建客户端并 Ping 确认可用
func Connect(ctx context.Context, opts *Options) (*mongo.Client, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	clientOpts := options.Client().ApplyURI(opts.URI)
	if opts.Username != "" || opts.Password != "" {
		clientOpts.SetAuth(options.Credential{
			Username: opts.Username,
			Password: opts.Password,
		})
	}
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.MinPoolSize > 0 {
		clientOpts.SetMinPoolSize(opts.MinPoolSize)
	}
	if opts.Timeout > 0 {
		clientOpts.SetConnectTimeout(opts.Timeout)
	}

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	return client, nil
}
