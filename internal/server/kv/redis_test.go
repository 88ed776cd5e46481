package kv

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, def time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr(), DefaultTTL: def})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestRedisStore_SetGetDel(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t, time.Minute)

	_, ok, err := s.Get(ctx, "message:user:1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "message:user:1", "sock-1", NoExpiry))

	v, ok, err := s.Get(ctx, "message:user:1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sock-1", v)

	n, err := s.Del(ctx, "message:user:1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisStore_TTLs(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, 300*time.Second)

	require.NoError(t, s.Set(ctx, "default", "v", 0))
	require.NoError(t, s.Set(ctx, "explicit", "v", 10*time.Second))
	require.NoError(t, s.Set(ctx, "persistent", "v", NoExpiry))

	assert.Equal(t, 300*time.Second, mr.TTL("default"))
	assert.Equal(t, 10*time.Second, mr.TTL("explicit"))
	assert.Equal(t, time.Duration(0), mr.TTL("persistent"))

	mr.FastForward(11 * time.Second)

	_, ok, _ := s.Get(ctx, "explicit")
	assert.False(t, ok)
	_, ok, _ = s.Get(ctx, "default")
	assert.True(t, ok)
	_, ok, _ = s.Get(ctx, "persistent")
	assert.True(t, ok)
}

func TestRedisStore_MGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newRedisStore(t, time.Minute)

	require.NoError(t, s.Set(ctx, "a", "1", 0))
	require.NoError(t, s.Set(ctx, "c", "3", 0))

	got, err := s.MGet(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []Value{{String: "1", Found: true}, {}, {String: "3", Found: true}}, got)
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	mr.Close()

	ctx := context.Background()
	_, _, err = s.Get(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, s.Set(ctx, "k", "v", 0))
	_, err = s.MGet(ctx, []string{"k"})
	assert.Error(t, err)
	_, err = s.Del(ctx, "k")
	assert.Error(t, err)
}

func TestNewRedisStore_PingFails(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisStore(context.Background(), RedisOptions{Addr: addr})
	assert.Error(t, err)
}
