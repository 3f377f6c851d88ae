package service

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"codedrill/internal/submit/repository"
	"codedrill/internal/task/model"

	"github.com/klauspost/compress/zstd"
)

type memoryStorage struct {
	objects      map[string][]byte
	contentTypes map[string]string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte), contentTypes: make(map[string]string)}
}

func (m *memoryStorage) PutObject(_ context.Context, bucket, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return io.ErrShortWrite
	}
	m.objects[bucket+"/"+key] = data
	m.contentTypes[bucket+"/"+key] = contentType
	return nil
}

func TestObjectArchiver(t *testing.T) {
	store := newMemoryStorage()
	archiver, err := NewObjectArchiver(store, "archive", "submissions/")
	if err != nil {
		t.Fatalf("new archiver: %v", err)
	}
	submission := &repository.Submission{
		ID:      "sub-1",
		TaskID:  "w1",
		Kind:    model.KindWrite,
		Code:    "package main",
		Passed:  true,
		Attempt: 3,
	}
	key, err := archiver.Archive(context.Background(), submission)
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if key != "submissions/w1/sub-1.json.zst" {
		t.Fatalf("unexpected key %q", key)
	}
	if store.contentTypes["archive/"+key] != "application/zstd" {
		t.Fatalf("unexpected content type %q", store.contentTypes["archive/"+key])
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		t.Fatalf("new decoder: %v", err)
	}
	defer decoder.Close()
	raw, err := decoder.DecodeAll(store.objects["archive/"+key], nil)
	if err != nil {
		t.Fatalf("decode archive: %v", err)
	}
	var decoded repository.Submission
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal archive: %v", err)
	}
	if decoded.ID != "sub-1" || decoded.Code != "package main" || decoded.Attempt != 3 || !decoded.Passed {
		t.Fatalf("unexpected archived record %+v", decoded)
	}
}

func TestNewObjectArchiverValidates(t *testing.T) {
	if _, err := NewObjectArchiver(nil, "b", ""); err == nil {
		t.Fatalf("expected error without storage")
	}
	if _, err := NewObjectArchiver(newMemoryStorage(), "", ""); err == nil {
		t.Fatalf("expected error without bucket")
	}
	a, err := NewObjectArchiver(newMemoryStorage(), "b", "")
	if err != nil {
		t.Fatalf("new archiver: %v", err)
	}
	if a.prefix != defaultArchivePrefix {
		t.Fatalf("expected default prefix, got %q", a.prefix)
	}
}
