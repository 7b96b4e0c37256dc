package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/solveprint/printshop/internal/config"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	store := NewMemoryStore(time.Minute)
	store.now = func() time.Time { return now }

	_, err := store.Get(ctx, "shop:owner")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, store.Set(ctx, "shop:owner", []byte("open"), 0))
	got, err := store.Get(ctx, "shop:owner")
	require.NoError(t, err)
	assert.Equal(t, []byte("open"), got)

	now = now.Add(2 * time.Minute)
	_, err = store.Get(ctx, "shop:owner")
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.Error(t, store.Set(ctx, "", []byte("v"), 0))
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	type settings struct {
		Name string
		Open bool
	}
	require.NoError(t, SetJSON(ctx, store, "s", settings{Name: "Ridha", Open: true}, 0))

	var out settings
	require.NoError(t, GetJSON(ctx, store, "s", &out))
	assert.Equal(t, settings{Name: "Ridha", Open: true}, out)

	assert.ErrorIs(t, GetJSON(ctx, noopStore{}, "s", &out), ErrCacheMiss)
}

func TestWithPrefix(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore(0)
	store := WithPrefix(inner, "printshop:")

	require.NoError(t, store.Set(ctx, "shop:owner", []byte("x"), 0))

	raw, err := inner.Get(ctx, "printshop:shop:owner")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), raw)

	raw, err = store.Get(ctx, "shop:owner")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), raw)

	require.NoError(t, store.Delete(ctx, "shop:owner"))
	_, err = inner.Get(ctx, "printshop:shop:owner")
	assert.ErrorIs(t, err, ErrCacheMiss)

	assert.Error(t, store.Set(ctx, "", []byte("x"), 0))
	assert.Same(t, inner, WithPrefix(inner, ""))
}

func TestNewStore(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	cfg := config.Config{Cache: config.Cache{Driver: "noop"}}
	store, err := NewStore(lc, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, noopStore{}, store)

	cfg.Cache = config.Cache{Driver: "memory", KeyPrefix: "p:"}
	store, err = NewStore(lc, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, store.Set(context.Background(), "k", []byte("v"), 0))
	raw, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), raw)

	cfg.Cache.Driver = "memcached"
	_, err = NewStore(lc, cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}
