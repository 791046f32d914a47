package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	t.Run("PutOpenReadAll", func(t *testing.T) {
		data := []byte("checkpoint payload")
		require.NoError(t, store.Put(ctx, "ckpt/0001", data))

		blob, err := store.Open(ctx, "ckpt/0001")
		require.NoError(t, err)
		defer blob.Close()
		assert.Equal(t, int64(len(data)), blob.Size())

		out, err := ReadAll(ctx, store, "ckpt/0001")
		require.NoError(t, err)
		assert.Equal(t, data, out)
	})

	t.Run("StreamingCreate", func(t *testing.T) {
		w, err := store.Create(ctx, "ckpt/0002")
		require.NoError(t, err)
		_, err = w.Write([]byte("part1-"))
		require.NoError(t, err)
		_, err = w.Write([]byte("part2"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		out, err := ReadAll(ctx, store, "ckpt/0002")
		require.NoError(t, err)
		assert.Equal(t, []byte("part1-part2"), out)
	})

	t.Run("List", func(t *testing.T) {
		names, err := store.List(ctx, "ckpt/")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"ckpt/0001", "ckpt/0002"}, names)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "ckpt/0001"))
		_, err := store.Open(ctx, "ckpt/0001")
		assert.ErrorIs(t, err, ErrNotFound)
		// Idempotent
		require.NoError(t, store.Delete(ctx, "ckpt/0001"))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := store.Open(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("OpenReturnsSnapshot", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "snap", []byte("v1")))
		blob, err := store.Open(ctx, "snap")
		require.NoError(t, err)
		defer blob.Close()

		require.NoError(t, store.Put(ctx, "snap", []byte("v2")))

		buf := make([]byte, 2)
		_, err = blob.ReadAt(ctx, buf, 0)
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), buf)
	})
}
