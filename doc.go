// Package codebook compresses the linear layers of a neural network by
// weight sharing: each weight matrix is replaced with a small codebook of
// shared centroid values plus a frozen matrix of uint8 indices into it.
// Centroids are found with k-means over the layer's flattened weights,
// seeded by evenly spaced values across the weight range.
//
// The quantized layers remain trainable. Forward passes gather the
// codebook through the index matrix; backward passes accumulate weight
// gradients per centroid, so fine-tuning updates only the shared values
// while the cluster assignments stay fixed.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	model := nn.NewSequential(layer1, layer2)
//
//	q, _ := codebook.New(16)               // 16 shared values per layer
//	compressed, _ := q.QuantizeModel(ctx, model)
//
//	y, _ := compressed.Forward(x)          // inference
//
// Fine-tune the codebooks:
//
//	for layer := range nn.Walk(compressed) {
//	    if ql, ok := layer.(*quantize.QuantizedLinear); ok {
//	        ql.Backward(x, dy)
//	        ql.Step(0.01)
//	    }
//	}
//
// # Checkpoints
//
// Compressed models serialize to a compact binary artifact and round-trip
// through any BlobStore backend (memory, local disk, S3, MinIO):
//
//	store := blobstore.NewMemoryStore()
//	q.Save(ctx, store, "model/v1.cbkq", compressed)
//	restored, _ := q.Load(ctx, store, "model/v1.cbkq")
//
// # Key Features
//
//   - Linear centroid initialization with bounded k-means refinement
//   - Frozen index matrices, trainable codebooks (gradients never touch indices)
//   - Immutable bottom-up model rewiring with structural verification
//   - Checksummed artifact format with optional zstd/lz4 block compression
//   - Pluggable blob storage (memory, local, S3, MinIO)
package codebook
