package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"codedrill/internal/common/storage"
	"codedrill/internal/submit/repository"

	"github.com/klauspost/compress/zstd"
)

const (
	defaultArchivePrefix = "submissions"
	archiveContentType   = "application/zstd"
)

// Archiver keeps a durable copy of each graded submission.
type Archiver interface {
	Archive(ctx context.Context, submission *repository.Submission) (string, error)
}

// ObjectArchiver writes zstd-compressed JSON records to object storage.
type ObjectArchiver struct {
	storage storage.ObjectStorage
	bucket  string
	prefix  string
	encoder *zstd.Encoder
}

// NewObjectArchiver creates an archiver writing under bucket/prefix.
func NewObjectArchiver(store storage.ObjectStorage, bucket, prefix string) (*ObjectArchiver, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	if prefix == "" {
		prefix = defaultArchivePrefix
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder failed: %w", err)
	}
	return &ObjectArchiver{
		storage: store,
		bucket:  bucket,
		prefix:  strings.TrimSuffix(prefix, "/"),
		encoder: encoder,
	}, nil
}

// Archive uploads the submission and returns its object key.
func (a *ObjectArchiver) Archive(ctx context.Context, submission *repository.Submission) (string, error) {
	payload, err := json.Marshal(submission)
	if err != nil {
		return "", fmt.Errorf("marshal archive record failed: %w", err)
	}
	compressed := a.encoder.EncodeAll(payload, nil)
	key := archiveKey(a.prefix, submission.TaskID, submission.ID)
	if err := a.storage.PutObject(ctx, a.bucket, key, bytes.NewReader(compressed), int64(len(compressed)), archiveContentType); err != nil {
		return "", err
	}
	return key, nil
}

func archiveKey(prefix, taskID, submissionID string) string {
	return fmt.Sprintf("%s/%s/%s.json.zst", prefix, taskID, submissionID)
}
