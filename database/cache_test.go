package database_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gocrud/container/database"
	"github.com/gocrud/container/di"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSqliteCache(t *testing.T) {
	ctx := context.Background()
	db, err := database.Open(database.NewSqliteOptions(filepath.Join(t.TempDir(), "cache.db")))
	require.NoError(t, err)
	defer database.Close(db)

	cache, err := database.NewCache(db, "")
	require.NoError(t, err)

	_, err = cache.Load(ctx)
	assert.ErrorIs(t, err, di.ErrCacheDataNotFound)

	require.NoError(t, cache.Save(ctx, []byte("first")))
	require.NoError(t, cache.Save(ctx, []byte("second")))

	data, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	var count int64
	require.NoError(t, db.Model(&database.CacheEntry{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// 不同的键互不影响
	other, err := database.NewCache(db, "other")
	require.NoError(t, err)
	_, err = other.Load(ctx)
	assert.ErrorIs(t, err, di.ErrCacheDataNotFound)

	require.NoError(t, cache.Flush(ctx))
	_, err = cache.Load(ctx)
	assert.ErrorIs(t, err, di.ErrCacheDataNotFound)
}

func TestOptionsValidate(t *testing.T) {
	_, err := database.Open(&database.Options{})
	assert.Error(t, err)
}
