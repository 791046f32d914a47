// Package minio implements blobstore.BlobStore for MinIO and other
// S3-compatible object stores.
//
// Useful for on-prem training clusters where checkpoints should not leave
// the network, and for local integration testing against a MinIO
// container.
package minio
