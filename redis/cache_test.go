package redis_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/gocrud/container/di"
	"github.com/gocrud/container/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidate(t *testing.T) {
	opts := redis.NewDefaultOptions()
	require.NoError(t, opts.Validate())

	opts.DB = -1
	assert.Error(t, opts.Validate())

	opts = redis.NewDefaultOptions()
	opts.Addr = ""
	assert.Error(t, opts.Validate())
}

func TestCacheIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	opts := redis.NewDefaultOptions()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		opts.Addr = addr
	}
	client, err := redis.Connect(ctx, opts)
	require.NoError(t, err)
	defer client.Close()

	cache := redis.NewCache(client, "di:test:"+t.Name(), time.Minute)
	require.NoError(t, cache.Flush(ctx))

	_, err = cache.Load(ctx)
	assert.ErrorIs(t, err, di.ErrCacheDataNotFound)

	require.NoError(t, cache.Save(ctx, []byte(`{"a":1}`)))
	data, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	require.NoError(t, cache.Flush(ctx))
	_, err = cache.Load(ctx)
	assert.ErrorIs(t, err, di.ErrCacheDataNotFound)
}
