// Package storage provides object storage for product media.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectStore uploads binary objects and returns their public URL.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// S3Store persists objects in an S3 bucket.
type S3Store struct {
	client     *s3.Client
	bucket     string
	publicBase string
}

// NewS3Store builds an S3-backed ObjectStore using the default AWS config chain.
func NewS3Store(ctx context.Context, bucket, publicBase string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("platform/storage: bucket required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("platform/storage: load aws config: %w", err)
	}
	return &S3Store{
		client:     s3.NewFromConfig(cfg),
		bucket:     bucket,
		publicBase: strings.TrimSuffix(publicBase, "/"),
	}, nil
}

// Put uploads the object and returns its public URL.
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("platform/storage: key required")
	}
	// PutObject needs a seekable body for signing; buffer small media objects.
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("platform/storage: read body: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("platform/storage: put %s: %w", key, err)
	}
	return fmt.Sprintf("%s/%s", s.publicBase, key), nil
}

// Delete removes the object. Missing keys are not an error.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("platform/storage: delete %s: %w", key, err)
	}
	return nil
}
