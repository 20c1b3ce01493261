package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type docKey string

type record struct {
	ID   int
	Kind string
}

func newCache[V any]() *InMemoryCacheManager[docKey, V] {
	return NewInMemoryCacheManager[docKey, V]("test", DefaultExpiration, DefaultCleanupInterval)
}

func TestInMemoryCacheManager_GetStruct(t *testing.T) {
	cache := newCache[record]()
	want := record{ID: 1, Kind: "account"}
	cache.Set(context.Background(), "doc:1", want, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "doc:1")
	require.True(t, ok)
	require.Equal(t, want, got)
	require.Equal(t, 1, cache.Len())
}

func TestInMemoryCacheManager_GetMissing(t *testing.T) {
	cache := newCache[string]()

	got, ok := cache.Get(context.Background(), "doc:1")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetWrongType(t *testing.T) {
	cache := newCache[string]()
	cache.cache.Set("doc:1", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "doc:1")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_GetMultiple(t *testing.T) {
	ctx := context.Background()

	t.Run("no keys", func(t *testing.T) {
		got, ok := newCache[string]().GetMultiple(ctx, nil)
		require.False(t, ok)
		require.Nil(t, got)
	})

	t.Run("partial hit", func(t *testing.T) {
		cache := newCache[string]()
		cache.Set(ctx, "a", "accounts", DefaultExpiration)
		cache.Set(ctx, "b", "entries", DefaultExpiration)
		cache.cache.Set("c", 7, DefaultExpiration)

		got, ok := cache.GetMultiple(ctx, []docKey{"a", "b", "c", "missing"})
		require.True(t, ok)
		require.Equal(t, map[docKey]string{"a": "accounts", "b": "entries"}, got)
	})

	t.Run("all missing", func(t *testing.T) {
		got, ok := newCache[string]().GetMultiple(ctx, []docKey{"a", "b"})
		require.False(t, ok)
		require.Nil(t, got)
	})
}

func TestInMemoryCacheManager_GetWithRefresh(t *testing.T) {
	ctx := context.Background()
	cache := newCache[string]()

	_, ok := cache.GetWithRefresh(ctx, "doc:1", time.Hour)
	require.False(t, ok)

	cache.Set(ctx, "doc:1", "v1", 50*time.Millisecond)
	got, ok := cache.GetWithRefresh(ctx, "doc:1", time.Hour)
	require.True(t, ok)
	require.Equal(t, "v1", got)

	time.Sleep(100 * time.Millisecond)
	got, ok = cache.Get(ctx, "doc:1")
	require.True(t, ok)
	require.Equal(t, "v1", got)
}

func TestInMemoryCacheManager_DeleteAndFlush(t *testing.T) {
	ctx := context.Background()
	cache := newCache[string]()
	require.NoError(t, cache.Delete(ctx))

	cache.Set(ctx, "a", "1", DefaultExpiration)
	cache.Set(ctx, "b", "2", DefaultExpiration)
	cache.Set(ctx, "c", "3", DefaultExpiration)

	require.NoError(t, cache.Delete(ctx, "a"))
	_, ok := cache.Get(ctx, "a")
	require.False(t, ok)
	require.Equal(t, 2, cache.Len())

	require.NoError(t, cache.Flush(ctx))
	require.Zero(t, cache.Len())
}
