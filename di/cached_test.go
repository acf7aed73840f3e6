package di_test

import (
	"context"
	"testing"

	"github.com/gocrud/container/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildCachedSource(t *testing.T, cache di.Cache) *di.CachedContainer {
	t.Helper()
	cc := di.NewCached(cache, di.WithTypes(newTypes()))
	cc.SetParameter("name", "cached")
	cc.SetParameter("port", 8080)
	cc.SetParameter("ratio", 0.25)

	require.NoError(t, cc.Register("simple", di.Options{"class": "SimpleService", "aliases": "basic"}))
	require.NoError(t, cc.Register("args", di.Options{
		"class":     "ArgumentedService",
		"arguments": []any{"@simple", "%name%"},
	}))
	require.NoError(t, cc.Register("factory", "SimpleFactory"))
	require.NoError(t, cc.Register("product", []any{"@factory", "create", []any{"%name%"}}))
	require.NoError(t, cc.Register("collection", "CollectionService"))
	require.NoError(t, cc.Register("item", di.Options{
		"class":  "SimpleService",
		"notify": []any{[]any{"@collection", "addNamed", []any{"@="}}},
	}))
	return cc
}

func TestCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := &memoryCache{}
	source := buildCachedSource(t, cache)
	require.NoError(t, source.CacheCurrentState(ctx))

	restored := di.NewCached(cache, di.WithTypes(newTypes()))
	require.NoError(t, restored.LoadFromCache(ctx))
	assert.True(t, restored.LoadedFromCache())

	port, err := restored.GetParameter("port")
	require.NoError(t, err)
	assert.Equal(t, 8080, port)
	ratio, err := restored.GetParameter("ratio")
	require.NoError(t, err)
	assert.Equal(t, 0.25, ratio)

	args, err := restored.Get("args")
	require.NoError(t, err)
	assert.Equal(t, "cached", args.(*ArgumentedService).Name)

	basic, err := restored.Get("basic")
	require.NoError(t, err)
	assert.Same(t, args.(*ArgumentedService).Simple, basic)

	product, err := restored.Get("product")
	require.NoError(t, err)
	assert.Equal(t, "cached", product.(*ArgumentedService).Name)

	collection, err := restored.Get("collection")
	require.NoError(t, err)
	assert.Equal(t, []string{"item"}, collection.(*CollectionService).Names)

	// 容器自身不进入缓存
	self, err := restored.Get("service_container")
	require.NoError(t, err)
	assert.Same(t, restored, self)
}

func TestCacheRoundTripCreatesFreshInstances(t *testing.T) {
	ctx := context.Background()
	cache := &memoryCache{}
	source := buildCachedSource(t, cache)

	s1, err := source.Get("simple")
	require.NoError(t, err)
	s2, err := source.Get("args")
	require.NoError(t, err)
	require.Same(t, s1, s2.(*ArgumentedService).Simple)
	require.NoError(t, source.CacheCurrentState(ctx))

	restored := di.NewCached(cache, di.WithTypes(newTypes()))
	require.NoError(t, restored.LoadFromCache(ctx))

	r1, err := restored.Get("simple")
	require.NoError(t, err)
	r2, err := restored.Get("args")
	require.NoError(t, err)

	assert.NotSame(t, s1, r1)
	assert.NotSame(t, s2, r2)
	assert.Same(t, r1, r2.(*ArgumentedService).Simple)
}

func TestClosureReceivesCachedContainer(t *testing.T) {
	cc := di.NewCached(&memoryCache{}, di.WithTypes(newTypes()))
	require.NoError(t, cc.Set("locator", func(l di.Locator) any { return l }))

	locator, err := cc.Get("locator")
	require.NoError(t, err)
	self, err := cc.Get("container")
	require.NoError(t, err)
	assert.Same(t, cc, locator)
	assert.Same(t, self, locator)
}

func TestCacheKeepsDeliveredNotifications(t *testing.T) {
	ctx := context.Background()
	cache := &memoryCache{}
	source := buildCachedSource(t, cache)

	_, err := source.Get("collection")
	require.NoError(t, err)
	require.NoError(t, source.CacheCurrentState(ctx))

	restored := di.NewCached(cache, di.WithTypes(newTypes()))
	require.NoError(t, restored.LoadFromCache(ctx))

	collection, err := restored.Get("collection")
	require.NoError(t, err)
	assert.Equal(t, []string{"item"}, collection.(*CollectionService).Names)
}

func TestLiveStateWinsOverCache(t *testing.T) {
	ctx := context.Background()
	cache := &memoryCache{}
	require.NoError(t, buildCachedSource(t, cache).CacheCurrentState(ctx))

	restored := di.NewCached(cache, di.WithTypes(newTypes()))
	restored.SetParameter("name", "live")
	require.NoError(t, restored.Register("simple", "CalledService"))
	require.NoError(t, restored.LoadFromCache(ctx))

	name, err := restored.GetParameter("name")
	require.NoError(t, err)
	assert.Equal(t, "live", name)

	simple, err := restored.Get("simple")
	require.NoError(t, err)
	assert.IsType(t, &CalledService{}, simple)
}

func TestServicesResolvedBeforeLoadReceiveNotifications(t *testing.T) {
	ctx := context.Background()
	cache := &memoryCache{}
	require.NoError(t, buildCachedSource(t, cache).CacheCurrentState(ctx))

	restored := di.NewCached(cache, di.WithTypes(newTypes()))
	require.NoError(t, restored.Register("collection", "CollectionService"))
	collection, err := restored.Get("collection")
	require.NoError(t, err)
	assert.Empty(t, collection.(*CollectionService).Names)

	require.NoError(t, restored.LoadFromCache(ctx))
	assert.Equal(t, []string{"item"}, collection.(*CollectionService).Names)
}

func TestNotCacheable(t *testing.T) {
	ctx := context.Background()

	cases := map[string]func(cc *di.CachedContainer) error{
		"object": func(cc *di.CachedContainer) error {
			return cc.Set("obj", &SimpleService{})
		},
		"closure": func(cc *di.CachedContainer) error {
			return cc.Set("fn", func(di.Locator) any { return 1 })
		},
		"argument": func(cc *di.CachedContainer) error {
			return cc.Register("weird", di.Options{
				"class":     "ArgumentedService",
				"arguments": []any{&SimpleService{}},
			})
		},
		"parameter": func(cc *di.CachedContainer) error {
			cc.SetParameter("handle", &SimpleService{})
			return nil
		},
	}
	for name, setup := range cases {
		t.Run(name, func(t *testing.T) {
			cache := &memoryCache{}
			cc := di.NewCached(cache, di.WithTypes(newTypes()))
			require.NoError(t, setup(cc))

			assert.ErrorIs(t, cc.CacheCurrentState(ctx), di.ErrNotCacheable)
			assert.Zero(t, cache.saves)
		})
	}
}

func TestLoadFromCacheErrors(t *testing.T) {
	ctx := context.Background()

	cases := map[string][]byte{
		"empty":   nil,
		"garbage": []byte("not json"),
		"partial": []byte(`{"parameters": {}, "services": {}}`),
		"null":    []byte(`{"parameters": {}, "services": {}, "aliases": {}, "notifications": null, "loaded_files": []}`),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			cache := &memoryCache{data: data}
			cc := di.NewCached(cache, di.WithTypes(newTypes()))
			assert.ErrorIs(t, cc.LoadFromCache(ctx), di.ErrCacheDataNotFound)
			assert.False(t, cc.LoadedFromCache())
		})
	}
}

func TestClearCache(t *testing.T) {
	ctx := context.Background()
	cache := &memoryCache{}
	source := buildCachedSource(t, cache)
	require.NoError(t, source.CacheCurrentState(ctx))

	require.NoError(t, source.ClearCache(ctx))
	restored := di.NewCached(cache, di.WithTypes(newTypes()))
	assert.ErrorIs(t, restored.LoadFromCache(ctx), di.ErrCacheDataNotFound)
}
