// Package s3 implements blobstore.BlobStore on AWS S3.
//
// Checkpoint uploads stream through the SDK's multipart uploader. For
// deployments with several trainers writing checkpoints for the same
// model, ManifestStore layers DynamoDB conditional writes on top to commit
// "latest checkpoint" pointers atomically, which plain S3 cannot do.
package s3
