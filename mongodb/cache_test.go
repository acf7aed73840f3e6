package mongodb_test

import (
	"context"
	"os"
	"testing"

	"github.com/gocrud/container/di"
	"github.com/gocrud/container/mongodb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsValidate(t *testing.T) {
	require.NoError(t, mongodb.NewDefaultOptions("mongodb://localhost:27017").Validate())
	assert.Error(t, mongodb.NewDefaultOptions("").Validate())
}

func TestCacheIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test")
	}

	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		uri = "mongodb://localhost:27017"
	}
	ctx := context.Background()
	opts := mongodb.NewDefaultOptions(uri)
	client, err := mongodb.Connect(ctx, opts)
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	coll := client.Database(opts.Database).Collection(opts.Collection)
	cache := mongodb.NewCache(coll, t.Name())
	require.NoError(t, cache.Flush(ctx))

	_, err = cache.Load(ctx)
	assert.ErrorIs(t, err, di.ErrCacheDataNotFound)

	require.NoError(t, cache.Save(ctx, []byte("v1")))
	require.NoError(t, cache.Save(ctx, []byte("v2")))
	data, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}
