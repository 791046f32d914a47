package blobstore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	t.Run("PutOpenReadAt", func(t *testing.T) {
		data := []byte("local checkpoint payload")
		require.NoError(t, store.Put(ctx, "models/a/ckpt", data))

		blob, err := store.Open(ctx, "models/a/ckpt")
		require.NoError(t, err)
		defer blob.Close()

		assert.Equal(t, int64(len(data)), blob.Size())

		buf := make([]byte, 5)
		n, err := blob.ReadAt(ctx, buf, 6)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, []byte("check"), buf)
	})

	t.Run("ShortReadReturnsEOF", func(t *testing.T) {
		blob, err := store.Open(ctx, "models/a/ckpt")
		require.NoError(t, err)
		defer blob.Close()

		buf := make([]byte, 1024)
		_, err = blob.ReadAt(ctx, buf, 0)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("ListAndDelete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "models/b/ckpt", []byte("x")))

		names, err := store.List(ctx, "models/")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"models/a/ckpt", "models/b/ckpt"}, names)

		require.NoError(t, store.Delete(ctx, "models/b/ckpt"))
		require.NoError(t, store.Delete(ctx, "models/b/ckpt")) // idempotent

		_, err = store.Open(ctx, "models/b/ckpt")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("NoPartialFilesVisible", func(t *testing.T) {
		w, err := store.Create(ctx, "models/partial")
		require.NoError(t, err)
		_, err = w.Write([]byte("incomplete"))
		require.NoError(t, err)

		// Not yet closed: blob must not be listed or openable.
		names, err := store.List(ctx, "models/partial")
		require.NoError(t, err)
		assert.Empty(t, names)

		require.NoError(t, w.Close())

		names, err = store.List(ctx, "models/partial")
		require.NoError(t, err)
		assert.Len(t, names, 1)
	})
}

func TestLocalStoreWriteLimit(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), WithWriteLimit(64*1024))
	require.NoError(t, err)

	// A write within the burst budget must not block noticeably.
	start := time.Now()
	require.NoError(t, store.Put(ctx, "ckpt", make([]byte, 32*1024)))
	assert.Less(t, time.Since(start), 2*time.Second)

	blob, err := store.Open(ctx, "ckpt")
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(32*1024), blob.Size())
}

func TestLocalStoreCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "dir")
	_, err := NewLocalStore(root)
	require.NoError(t, err)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
