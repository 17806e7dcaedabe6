package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-sso/storage"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func testKV(t *testing.T, kv storage.KV) {
	ctx := context.Background()

	_, ok, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, kv.Set(ctx, "a", "1"))
	require.NoError(t, kv.Set(ctx, "b", "2"))
	v, ok, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	require.NoError(t, kv.Set(ctx, "a", "3"))
	v, _, _ = kv.Get(ctx, "a")
	require.Equal(t, "3", v)

	require.NoError(t, kv.Delete(ctx, "a"))
	require.NoError(t, kv.Delete(ctx, "a"))
	_, ok, _ = kv.Get(ctx, "a")
	require.False(t, ok)

	require.NoError(t, kv.Clear(ctx))
	require.NoError(t, kv.Clear(ctx))
	_, ok, _ = kv.Get(ctx, "b")
	require.False(t, ok)
}

func TestMemory(t *testing.T) {
	testKV(t, storage.NewMemory())
}

func TestRedis(t *testing.T) {
	_, client := newRedis(t)
	testKV(t, storage.NewRedis(client, "sso", 0))
}

func TestRedis_ClearOnlyTouchesNamespace(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	root := storage.NewRedis(client, "sso", 0)
	tabA := root.Namespace("tab-a")
	tabB := root.Namespace("tab-b")

	for i := 0; i < 250; i++ {
		require.NoError(t, tabA.Set(ctx, fmt.Sprintf("k%d", i), "v"))
	}
	require.NoError(t, tabB.Set(ctx, "keep", "v"))

	require.NoError(t, tabA.Clear(ctx))

	require.True(t, mr.Exists("sso:tab-b:keep"))
	require.False(t, mr.Exists("sso:tab-a:k0"))
	require.Len(t, mr.Keys(), 1)
}

func TestRedis_TTL(t *testing.T) {
	mr, client := newRedis(t)
	kv := storage.NewRedis(client, "sso", time.Minute)

	require.NoError(t, kv.Set(context.Background(), "token", "abc"))
	require.Equal(t, time.Minute, mr.TTL("sso:token"))

	mr.FastForward(2 * time.Minute)
	_, ok, err := kv.Get(context.Background(), "token")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPartitions(t *testing.T) {
	_, client := newRedis(t)
	ctx := context.Background()

	for name, p := range map[string]storage.Partitioner{
		"memory": storage.NewMemoryPartitions(),
		"redis":  storage.NewRedis(client, "sso", 0),
	} {
		t.Run(name, func(t *testing.T) {
			a := p.Partition("sid-a")
			require.NoError(t, a.Set(ctx, "token", "a"))

			v, ok, err := p.Partition("sid-a").Get(ctx, "token")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "a", v)

			_, ok, err = p.Partition("sid-b").Get(ctx, "token")
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}
