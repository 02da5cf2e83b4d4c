package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/finkg/backend/internal/util"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewS3Client builds a path-style client from the AWS_* environment
// variables. It returns nil when no bucket is configured.
func NewS3Client(ctx context.Context) *s3.Client {
	if util.GetEnv("AWS_BUCKET") == "" {
		return nil
	}
	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion(util.GetEnvString("AWS_REGION", "us-east-1")),
		config.WithBaseEndpoint(util.GetEnv("AWS_ENDPOINT")),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			util.GetEnv("AWS_ACCESS_KEY"),
			util.GetEnv("AWS_SECRET_KEY"),
			"",
		)),
	)
	if err != nil {
		return nil
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
}

// Archiver stores extraction snapshots.
type Archiver interface {
	ArchiveExtraction(ctx context.Context, projectID string, kind string, payload any) (string, error)
}

type objectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Snapshot is the archived document of one extraction run.
type Snapshot struct {
	ProjectID string          `json:"project_id"`
	Kind      string          `json:"kind"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// S3Archive writes snapshots to projects/<id>/extractions/<nanoid>.json.
type S3Archive struct {
	client objectClient
	bucket string
	now    func() time.Time
}

func NewS3Archive(client objectClient, bucket string) *S3Archive {
	return &S3Archive{client: client, bucket: bucket, now: time.Now}
}

func ExtractionKey(projectID, id string) string {
	return fmt.Sprintf("projects/%s/extractions/%s.json", projectID, id)
}

// ArchiveExtraction uploads payload wrapped in a Snapshot and returns the
// object key.
func (a *S3Archive) ArchiveExtraction(ctx context.Context, projectID string, kind string, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode snapshot payload: %w", err)
	}
	doc, err := json.Marshal(Snapshot{
		ProjectID: projectID,
		Kind:      kind,
		CreatedAt: a.now().UTC(),
		Payload:   raw,
	})
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	id, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	key := ExtractionKey(projectID, id)

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(doc),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot to S3: %w", err)
	}
	return key, nil
}

// GetSnapshot reads an archived snapshot back.
func (a *S3Archive) GetSnapshot(ctx context.Context, key string) (Snapshot, error) {
	result, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to get snapshot from S3: %w", err)
	}
	defer result.Body.Close()

	raw, err := io.ReadAll(result.Body)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
