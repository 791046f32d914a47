package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robeld/codebook/blobstore"
)

// TestStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestStore_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-codebook"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	_, err = client.ListBuckets(ctx)
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		err = client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		require.NoError(t, err)
	}

	store := NewStore(client, bucket, "test-checkpoints")

	t.Run("put and open", func(t *testing.T) {
		data := []byte("quantized model bytes")
		require.NoError(t, store.Put(ctx, "model-a/v1.cbkq", data))

		blob, err := store.Open(ctx, "model-a/v1.cbkq")
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), blob.Size())
		require.NoError(t, blob.Close())

		got, err := blobstore.ReadAll(ctx, store, "model-a/v1.cbkq")
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("ranged read", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "model-a/v2.cbkq", []byte("0123456789")))

		blob, err := store.Open(ctx, "model-a/v2.cbkq")
		require.NoError(t, err)
		defer blob.Close()

		p := make([]byte, 4)
		n, err := blob.ReadAt(ctx, p, 3)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
		assert.Equal(t, []byte("3456"), p)
	})

	t.Run("streaming create", func(t *testing.T) {
		wb, err := store.Create(ctx, "model-a/v3.cbkq")
		require.NoError(t, err)

		_, err = wb.Write([]byte("part one "))
		require.NoError(t, err)
		_, err = wb.Write([]byte("part two"))
		require.NoError(t, err)
		require.NoError(t, wb.Close())

		got, err := blobstore.ReadAll(ctx, store, "model-a/v3.cbkq")
		require.NoError(t, err)
		assert.Equal(t, []byte("part one part two"), got)
	})

	t.Run("list", func(t *testing.T) {
		names, err := store.List(ctx, "model-a/")
		require.NoError(t, err)
		assert.Contains(t, names, "model-a/v1.cbkq")
		assert.Contains(t, names, "model-a/v2.cbkq")
		assert.Contains(t, names, "model-a/v3.cbkq")
	})

	t.Run("open missing", func(t *testing.T) {
		_, err := store.Open(ctx, "model-a/nope.cbkq")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "model-a/v1.cbkq"))
		_, err := store.Open(ctx, "model-a/v1.cbkq")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)

		// idempotent
		require.NoError(t, store.Delete(ctx, "model-a/v1.cbkq"))
	})

	// cleanup
	_ = store.Delete(ctx, "model-a/v2.cbkq")
	_ = store.Delete(ctx, "model-a/v3.cbkq")
}
