package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gocrud/container/cache"
	"github.com/gocrud/container/di"
	"github.com/gocrud/container/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseCache(t *testing.T, c di.Cache) {
	t.Helper()
	ctx := context.Background()

	_, err := c.Load(ctx)
	assert.ErrorIs(t, err, di.ErrCacheDataNotFound)

	require.NoError(t, c.Save(ctx, []byte("first")))
	require.NoError(t, c.Save(ctx, []byte("second")))
	data, err := c.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Flush(ctx))
	_, err = c.Load(ctx)
	assert.ErrorIs(t, err, di.ErrCacheDataNotFound)
}

func TestMemory(t *testing.T) {
	exerciseCache(t, cache.NewMemory())
}

func TestMemoryCopiesData(t *testing.T) {
	ctx := context.Background()
	m := cache.NewMemory()
	data := []byte("abc")
	require.NoError(t, m.Save(ctx, data))
	data[0] = 'x'

	loaded, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(loaded))
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "container.json")
	exerciseCache(t, cache.NewFile(path))

	// 不留下临时文件
	require.NoError(t, cache.NewFile(path).Save(context.Background(), []byte("x")))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewNopLogger()

	backend, err := cache.Open(ctx, cache.Settings{Driver: "memory"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "memory", backend.Driver)
	assert.NoError(t, backend.Close())

	path := filepath.Join(t.TempDir(), "snapshot.json")
	backend, err = cache.Open(ctx, cache.Settings{Path: path}, logger)
	require.NoError(t, err)
	assert.Equal(t, "file", backend.Driver)
	require.NoError(t, backend.Save(ctx, []byte("{}")))
	assert.FileExists(t, path)

	backend, err = cache.Open(ctx, cache.Settings{
		Driver:   "SQLITE",
		Database: cache.DatabaseSettings{DSN: filepath.Join(t.TempDir(), "cache.db")},
	}, logger)
	require.NoError(t, err)
	exerciseCache(t, backend)
	assert.NoError(t, backend.Close())

	_, err = cache.Open(ctx, cache.Settings{Driver: "floppy"}, logger)
	assert.ErrorContains(t, err, "unknown driver")

	_, err = cache.Open(ctx, cache.Settings{Driver: "redis", TTL: "soon"}, logger)
	assert.ErrorContains(t, err, "invalid ttl")
}

func TestContainerRoundTripThroughFile(t *testing.T) {
	ctx := context.Background()
	file := cache.NewFile(filepath.Join(t.TempDir(), "container.json"))
	types := di.NewTypeRegistry().MustRegister("Greeter", func(name string) *greeter {
		return &greeter{name: name}
	})

	source := di.NewCached(file, di.WithTypes(types))
	source.SetParameter("name", "file")
	require.NoError(t, source.Register("greeter", di.Options{"class": "Greeter", "arguments": []any{"%name%"}}))
	require.NoError(t, source.CacheCurrentState(ctx))

	restored := di.NewCached(file, di.WithTypes(types))
	require.NoError(t, restored.LoadFromCache(ctx))
	g, err := restored.Get("greeter")
	require.NoError(t, err)
	assert.Equal(t, "file", g.(*greeter).name)
}

type greeter struct{ name string }

func TestDrivers(t *testing.T) {
	assert.Equal(t, []string{"etcd", "file", "memory", "mongodb", "redis", "sqlite"}, cache.Drivers())
}
