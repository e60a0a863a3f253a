package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusufsyaifudin/release/pkg/cache"
)

type icon struct {
	BundleID string `json:"bundle_id"`
	URL      string `json:"url"`
}

func TestNewInMemory(t *testing.T) {
	t.Run("default size", func(t *testing.T) {
		c, err := cache.NewInMemory(0)
		assert.NotNil(t, c)
		assert.NoError(t, err)
	})
}

func TestInMemory_GetAs(t *testing.T) {
	t.Run("no key found", func(t *testing.T) {
		c, err := cache.NewInMemory(0)
		require.NoError(t, err)

		var out icon
		err = c.GetAs(context.Background(), "key", &out)
		assert.ErrorIs(t, err, cache.ErrKeyNotExist)
	})

	t.Run("success", func(t *testing.T) {
		c, err := cache.NewInMemory(0)
		require.NoError(t, err)

		in := icon{BundleID: "com.example.app", URL: "https://example.com/512.png"}
		err = c.SetExp(context.Background(), "key", in, -1)
		assert.NoError(t, err)

		var out icon
		err = c.GetAs(context.Background(), "key", &out)
		assert.NoError(t, err)
		assert.Equal(t, in, out)
	})

	t.Run("expired", func(t *testing.T) {
		c, err := cache.NewInMemory(0)
		require.NoError(t, err)

		in := icon{BundleID: "com.example.app"}
		err = c.SetExp(context.Background(), "key", in, 20*time.Millisecond)
		require.NoError(t, err)

		time.Sleep(50 * time.Millisecond)

		var out icon
		err = c.GetAs(context.Background(), "key", &out)
		assert.ErrorIs(t, err, cache.ErrKeyNotExist)
	})
}

func TestInMemory_SetExp(t *testing.T) {
	t.Run("error marshal", func(t *testing.T) {
		c, err := cache.NewInMemory(0)
		require.NoError(t, err)

		in := map[string]interface{}{
			"key": make(chan int, 1),
		}

		err = c.SetExp(context.Background(), "key", in, -1)
		assert.Error(t, err)
	})
}

func TestInMemory_Delete(t *testing.T) {
	c, err := cache.NewInMemory(0)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.SetExp(ctx, "key", icon{URL: "x"}, 0))
	require.NoError(t, c.Delete(ctx, "key"))

	var out icon
	assert.ErrorIs(t, c.GetAs(ctx, "key", &out), cache.ErrKeyNotExist)
}

func TestPrefixed(t *testing.T) {
	c, err := cache.NewInMemory(0)
	require.NoError(t, err)

	ctx := context.Background()
	icons := cache.NewPrefixed("icon", c)
	require.NoError(t, icons.SetExp(ctx, "com.example.app", icon{URL: "x"}, 0))

	var out icon
	assert.NoError(t, c.GetAs(ctx, "icon:com.example.app", &out))
	assert.Equal(t, "x", out.URL)

	assert.ErrorIs(t, c.GetAs(ctx, "com.example.app", &out), cache.ErrKeyNotExist)
}
