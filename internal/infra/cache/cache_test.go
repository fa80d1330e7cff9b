package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/bloodreport-ai/internal/domain/reports"
)

var (
	_ reports.Cache = (*Cache)(nil)
	_ reports.Cache = Noop{}
)

func TestNoopAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c Noop
	assert.NoError(t, c.Set(ctx, "k", "v", time.Minute))

	var out string
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrCacheMiss)
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.DeletePattern(ctx, "k*"))
}

func TestCacheUnreachableIsNotAMiss(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()
	c := NewCache(rdb, "test:")

	var out string
	err := c.Get(context.Background(), "k", &out)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, c.Delete(context.Background()))
}

func TestCacheKeysArePrefixed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	c := NewCache(rdb, KeyPrefix)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "user_reports:7", []int{1, 2}, 5*time.Minute))
	assert.True(t, mr.Exists("cache:user_reports:7"))
	assert.False(t, mr.Exists("user_reports:7"))
	assert.Equal(t, 5*time.Minute, mr.TTL("cache:user_reports:7"))

	var got []int
	require.NoError(t, c.Get(ctx, "user_reports:7", &got))
	assert.Equal(t, []int{1, 2}, got)
}

func TestCacheDeletePatternLeavesOtherKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	c := NewCache(rdb, KeyPrefix)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "analysis:12:aaa", "x", time.Minute))
	require.NoError(t, c.Set(ctx, "analysis:12:bbb", "y", time.Minute))
	require.NoError(t, c.Set(ctx, "analysis:13:aaa", "z", time.Minute))
	// queue keys share the instance
	_, err := mr.Lpush("queue:analysis", "job")
	require.NoError(t, err)
	require.NoError(t, mr.Set("task:abc", "{}"))

	require.NoError(t, c.DeletePattern(ctx, "*"))
	assert.False(t, mr.Exists("cache:analysis:12:aaa"))
	assert.False(t, mr.Exists("cache:analysis:13:aaa"))
	assert.True(t, mr.Exists("queue:analysis"))
	assert.True(t, mr.Exists("task:abc"))
}

func TestCacheDeletePatternScoped(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	c := NewCache(rdb, KeyPrefix)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "analysis:12:aaa", "x", time.Minute))
	require.NoError(t, c.Set(ctx, "analysis:13:aaa", "z", time.Minute))

	require.NoError(t, c.DeletePattern(ctx, "analysis:12:*"))
	assert.False(t, mr.Exists("cache:analysis:12:aaa"))
	assert.True(t, mr.Exists("cache:analysis:13:aaa"))

	var out string
	assert.ErrorIs(t, c.Get(ctx, "analysis:12:aaa", &out), ErrCacheMiss)
}
