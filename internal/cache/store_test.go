package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/market-insights/infrastructure/logger"
	"github.com/jonesrussell/market-insights/infrastructure/redis"
	"github.com/jonesrussell/market-insights/internal/cache"
)

func newManager(t *testing.T, addr string) *redis.Manager {
	t.Helper()

	m, err := redis.NewManager(redis.Config{Address: addr, DialTimeout: 200 * time.Millisecond}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func newRedisStore(t *testing.T) (*cache.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	m := newManager(t, mr.Addr())
	require.NoError(t, m.Connect(context.Background()))
	return cache.NewRedisStore(m, 0), mr
}

func TestRedisStore_GetSet(t *testing.T) {
	t.Parallel()

	s, mr := newRedisStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "mi:k")
	require.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, s.Set(ctx, "mi:k", []byte(`{"a":1}`), time.Minute))
	got, err := s.Get(ctx, "mi:k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(got))
	assert.Equal(t, time.Minute, mr.TTL("mi:k"))

	mr.FastForward(time.Minute)
	_, err = s.Get(ctx, "mi:k")
	require.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestRedisStore_TagsAndDelete(t *testing.T) {
	t.Parallel()

	s, mr := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddToTag(ctx, "mi:tag:Report", time.Minute, "a", "b"))
	require.NoError(t, s.AddToTag(ctx, "mi:tag:Report", time.Minute, "b", "c"))
	require.NoError(t, s.AddToTag(ctx, "mi:tag:Report", time.Minute))

	members, err := s.TagMembers(ctx, "mi:tag:Report")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, members)

	require.NoError(t, mr.Set("a", "1"))
	require.NoError(t, s.Delete(ctx, "a", "mi:tag:Report"))
	require.NoError(t, s.Delete(ctx))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("mi:tag:Report"))
}

func TestRedisStore_TagSetExpiryFollowsLongestEntry(t *testing.T) {
	t.Parallel()

	s, mr := newRedisStore(t)
	ctx := context.Background()
	const tag = "mi:tag:Report"

	require.NoError(t, s.AddToTag(ctx, tag, time.Minute, "a"))
	assert.Equal(t, time.Minute, mr.TTL(tag))

	require.NoError(t, s.AddToTag(ctx, tag, 5*time.Minute, "b"))
	assert.Equal(t, 5*time.Minute, mr.TTL(tag))

	require.NoError(t, s.AddToTag(ctx, tag, 30*time.Second, "c"))
	assert.Equal(t, 5*time.Minute, mr.TTL(tag), "a shorter entry must not shorten the set")

	mr.FastForward(5 * time.Minute)
	assert.False(t, mr.Exists(tag))
}

func TestRedisStore_UnavailableWithoutConnection(t *testing.T) {
	t.Parallel()

	s := cache.NewRedisStore(newManager(t, unreachable), 0)
	ctx := context.Background()

	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, cache.ErrCacheUnavailable)
	require.ErrorIs(t, s.Set(ctx, "k", []byte("1"), time.Second), cache.ErrCacheUnavailable)
	_, err = s.TagMembers(ctx, "t")
	require.ErrorIs(t, err, cache.ErrCacheUnavailable)
}

func TestRedisStore_ServerLossMarksUnhealthy(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	m := newManager(t, mr.Addr())
	require.NoError(t, m.Connect(context.Background()))
	s := cache.NewRedisStore(m, 0)

	mr.Close()
	_, err := s.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrCacheMiss)
	assert.False(t, m.IsHealthy(context.Background()))
}
