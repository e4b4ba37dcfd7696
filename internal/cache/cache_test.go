package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLocalLRUBasic(t *testing.T) {
	l := NewLocalLRU(2)
	ctx := context.Background()

	l.Set(ctx, "a", "query a", time.Minute)
	v, ok := l.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, "query a", v)

	_, ok = l.Get(ctx, "missing")
	assert.False(t, ok)
}

func TestLocalLRUEviction(t *testing.T) {
	l := NewLocalLRU(2)
	ctx := context.Background()

	l.Set(ctx, "a", "1", time.Minute)
	l.Set(ctx, "b", "2", time.Minute)
	l.Get(ctx, "a") // refresh a
	l.Set(ctx, "c", "3", time.Minute)

	_, ok := l.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = l.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = l.Get(ctx, "c")
	assert.True(t, ok)
}

func TestLocalLRUExpiry(t *testing.T) {
	l := NewLocalLRU(10)
	ctx := context.Background()

	l.Set(ctx, "a", "1", 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	_, ok := l.Get(ctx, "a")
	assert.False(t, ok)
}

func TestRedisCacheRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)

	rc, err := NewRedisCache(mr.Addr(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer rc.Close()

	ctx := context.Background()
	key := MakeKey("gpt-35-turbo", "what about house insurance?")
	rc.Set(ctx, key, "house insurance coverage", time.Minute)

	v, ok := rc.Get(ctx, key)
	require.True(t, ok)
	assert.Equal(t, "house insurance coverage", v)

	_, ok = rc.Get(ctx, MakeKey("gpt-35-turbo", "other"))
	assert.False(t, ok)
}

func TestTieredBackfillsLocal(t *testing.T) {
	mr := miniredis.RunT(t)
	rc, err := NewRedisCache(mr.Addr(), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer rc.Close()

	lru := NewLocalLRU(10)
	tc := NewTiered(lru, rc)
	ctx := context.Background()

	rc.Set(ctx, "k", "from redis", time.Minute)

	v, ok := tc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "from redis", v)

	// Second read is served locally even if Redis loses the key.
	mr.FlushAll()
	v, ok = tc.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "from redis", v)
}

func TestMakeKeyStable(t *testing.T) {
	k1 := MakeKey("m", "text")
	k2 := MakeKey("m", "text")
	k3 := MakeKey("m", "other")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
