package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type memoryObjects struct {
	objects map[string][]byte
}

func (m *memoryObjects) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	raw, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.objects[*in.Key] = raw
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryObjects) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(m.objects[*in.Key]))}, nil
}

func TestArchiveExtractionRoundTrip(t *testing.T) {
	mem := &memoryObjects{objects: map[string][]byte{}}
	archive := NewS3Archive(mem, "snapshots")
	archive.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	key, err := archive.ArchiveExtraction(context.Background(), "p9", "nodes", map[string]int{"count": 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(key, "projects/p9/extractions/") || !strings.HasSuffix(key, ".json") {
		t.Fatalf("unexpected key %s", key)
	}

	snap, err := archive.GetSnapshot(context.Background(), key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.ProjectID != "p9" || snap.Kind != "nodes" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if string(snap.Payload) != `{"count":2}` {
		t.Fatalf("unexpected payload %s", snap.Payload)
	}
	if !snap.CreatedAt.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", snap.CreatedAt)
	}
}

func TestExtractionKey(t *testing.T) {
	if got := ExtractionKey("12", "abc"); got != "projects/12/extractions/abc.json" {
		t.Fatalf("unexpected key %s", got)
	}
}
