package storage

import (
	"context"
	"io"
)

// ObjectStorage defines the object storage operations used by the submission archive.
type ObjectStorage interface {
	// PutObject uploads sizeBytes from reader to bucket/objectKey.
	PutObject(ctx context.Context, bucket, objectKey string, reader io.Reader, sizeBytes int64, contentType string) error
}
