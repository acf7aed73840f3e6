package etcd_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/gocrud/container/di"
	"github.com/gocrud/container/etcd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidate(t *testing.T) {
	opts := etcd.NewDefaultOptions()
	require.NoError(t, opts.Validate())

	opts.Endpoints = nil
	assert.Error(t, opts.Validate())
}

func TestCacheIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test")
	}

	ctx := context.Background()
	opts := etcd.NewDefaultOptions()
	if endpoints := os.Getenv("ETCD_ENDPOINTS"); endpoints != "" {
		opts.Endpoints = strings.Split(endpoints, ",")
	}
	client, err := etcd.Connect(ctx, opts)
	require.NoError(t, err)
	defer client.Close()

	cache := etcd.NewCache(client, "/di/test/"+t.Name())
	require.NoError(t, cache.Flush(ctx))

	_, err = cache.Load(ctx)
	assert.ErrorIs(t, err, di.ErrCacheDataNotFound)

	require.NoError(t, cache.Save(ctx, []byte("snapshot")))
	data, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", string(data))
}
