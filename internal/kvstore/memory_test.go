package kvstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	t.Run("get missing key", func(t *testing.T) {
		_, err := kv.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "k", []byte("v")))

		value, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), value)
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "k2", []byte("abc")))

		value, err := kv.Get(ctx, "k2")
		require.NoError(t, err)
		value[0] = 'z'

		again, err := kv.Get(ctx, "k2")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc"), again)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, kv.Set(ctx, "k3", []byte("v")))
		require.NoError(t, kv.Delete(ctx, "k3"))

		_, err := kv.Get(ctx, "k3")
		assert.ErrorIs(t, err, ErrNotFound)

		// deleting an absent key is not an error
		assert.NoError(t, kv.Delete(ctx, "k3"))
	})
}
