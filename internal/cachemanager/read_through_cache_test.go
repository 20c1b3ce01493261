package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCacheManager[K comparable, V any] struct {
	mock.Mock
}

func newMockCacheManager[K comparable, V any](t *testing.T) *mockCacheManager[K, V] {
	m := &mockCacheManager[K, V]{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *mockCacheManager[K, V]) Get(ctx context.Context, key K) (V, bool) {
	args := m.Called(ctx, key)
	return args.Get(0).(V), args.Bool(1)
}

func (m *mockCacheManager[K, V]) GetMultiple(ctx context.Context, keys []K) (map[K]V, bool) {
	args := m.Called(ctx, keys)
	return args.Get(0).(map[K]V), args.Bool(1)
}

func (m *mockCacheManager[K, V]) GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool) {
	args := m.Called(ctx, key, ttl)
	return args.Get(0).(V), args.Bool(1)
}

func (m *mockCacheManager[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	m.Called(ctx, key, value, ttl)
}

func (m *mockCacheManager[K, V]) Delete(ctx context.Context, keys ...K) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *mockCacheManager[K, V]) Flush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type revision struct {
	Path string
	Seq  int
}

func loader(calls *int) func(context.Context, revision) ([]record, error) {
	return func(_ context.Context, r revision) ([]record, error) {
		*calls++
		return []record{{ID: r.Seq, Kind: "account"}}, nil
	}
}

func failing(context.Context, revision) ([]record, error) {
	return nil, errors.New("reading document")
}

func TestReadThroughCache_SkipCache(t *testing.T) {
	cache := newMockCacheManager[docKey, []record](t)
	calls := 0
	rt := NewReadThroughCache[docKey, []record, revision](cache, loader(&calls), true)

	got, err := rt.Get(context.Background(), "doc:1", revision{Seq: 1}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, []record{{ID: 1, Kind: "account"}}, got)

	_, err = rt.GetWithRefresh(context.Background(), "doc:1", revision{Seq: 1}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	cache.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestReadThroughCache_Get(t *testing.T) {
	cached := []record{{ID: 9, Kind: "entry"}}

	t.Run("hit", func(t *testing.T) {
		cache := newMockCacheManager[docKey, []record](t)
		cache.On("Get", mock.Anything, docKey("doc:1")).Return(cached, true)
		calls := 0
		rt := NewReadThroughCache[docKey, []record, revision](cache, loader(&calls), false)

		got, err := rt.Get(context.Background(), "doc:1", revision{Seq: 1}, time.Minute)
		require.NoError(t, err)
		require.Equal(t, cached, got)
		require.Zero(t, calls)
	})

	t.Run("miss", func(t *testing.T) {
		cache := newMockCacheManager[docKey, []record](t)
		cache.On("Get", mock.Anything, docKey("doc:1")).Return([]record(nil), false)
		cache.On("Set", mock.Anything, docKey("doc:1"), []record{{ID: 1, Kind: "account"}}, time.Minute).Return()
		calls := 0
		rt := NewReadThroughCache[docKey, []record, revision](cache, loader(&calls), false)

		got, err := rt.Get(context.Background(), "doc:1", revision{Seq: 1}, time.Minute)
		require.NoError(t, err)
		require.Equal(t, []record{{ID: 1, Kind: "account"}}, got)
		require.Equal(t, 1, calls)
	})

	t.Run("error is not cached", func(t *testing.T) {
		cache := newMockCacheManager[docKey, []record](t)
		cache.On("Get", mock.Anything, docKey("doc:1")).Return([]record(nil), false)
		rt := NewReadThroughCache[docKey, []record, revision](cache, failing, false)

		_, err := rt.Get(context.Background(), "doc:1", revision{Seq: 1}, time.Minute)
		require.Error(t, err)
		cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReadThroughCache_GetWithRefresh(t *testing.T) {
	cache := newMockCacheManager[docKey, []record](t)
	cache.On("GetWithRefresh", mock.Anything, docKey("doc:1"), time.Minute).Return([]record(nil), false).Once()
	cache.On("Set", mock.Anything, docKey("doc:1"), mock.Anything, time.Minute).Return().Once()
	calls := 0
	rt := NewReadThroughCache[docKey, []record, revision](cache, loader(&calls), false)

	_, err := rt.GetWithRefresh(context.Background(), "doc:1", revision{Seq: 3}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestReadThroughCache_RealCache(t *testing.T) {
	ctx := context.Background()
	calls := 0
	rt := NewReadThroughCache[docKey, []record, revision](newCache[[]record](), loader(&calls), false)

	for range 3 {
		_, err := rt.Get(ctx, "doc:1", revision{Seq: 1}, time.Minute)
		require.NoError(t, err)
	}
	require.Equal(t, 1, calls)

	require.NoError(t, rt.Invalidate(ctx, "doc:1"))
	_, err := rt.Get(ctx, "doc:1", revision{Seq: 2}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
