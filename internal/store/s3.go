package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Backend.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Backend keeps the snapshot in a single S3 object. Used on Lambda, where
// the local filesystem does not survive the execution environment.
// PutObject replaces the object atomically.
type S3Backend struct {
	client S3API
	bucket string
	key    string
}

// NewS3Backend returns a backend for s3://bucket/key.
func NewS3Backend(client S3API, bucket, key string) *S3Backend {
	return &S3Backend{client: client, bucket: bucket, key: key}
}

// Location returns the s3:// URI of the snapshot.
func (b *S3Backend) Location() string {
	return fmt.Sprintf("s3://%s/%s", b.bucket, b.key)
}

// Read downloads the snapshot. A missing object yields an error wrapping
// fs.ErrNotExist.
func (b *S3Backend) Read(ctx context.Context) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &b.bucket,
		Key:    &b.key,
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%s: %w", b.Location(), fs.ErrNotExist)
		}
		return nil, fmt.Errorf("get object %s: %w", b.Location(), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", b.Location(), err)
	}
	return data, nil
}

// Write uploads the snapshot, replacing the previous object.
func (b *S3Backend) Write(ctx context.Context, data []byte) error {
	contentType := "application/json"
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &b.bucket,
		Key:         &b.key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", b.Location(), err)
	}
	return nil
}
