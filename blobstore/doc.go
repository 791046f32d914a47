// Package blobstore abstracts storage for quantized model artifacts.
//
// Checkpoints are immutable blobs: written once, read many times, never
// mutated in place. The interface reflects that — streaming creation,
// atomic Put, random-access reads.
//
// Implementations:
//
//   - MemoryStore: in-memory, for tests
//   - LocalStore: local filesystem, optional write throttling
//   - s3.Store: AWS S3 (multipart upload), optional DynamoDB manifest commits
//   - minio.Store: MinIO and other S3-compatible object stores
package blobstore
