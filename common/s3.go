package common

import (
	"context"
	"errors"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// BlobStoreConfig configures the S3-compatible store preview blobs live in.
// Credentials come from the standard AWS config chain.
type BlobStoreConfig struct {
	Bucket string
	Region string
	// Prefix is prepended to every key, e.g. "stashpad" keeps the bucket
	// shareable with other services.
	Prefix string
	// UsePathStyle forces path-style addressing for S3-compatible providers
	// like MinIO.
	UsePathStyle bool
}

// BlobStore is a bucket-bound object store. It backs short-lived snapshot
// previews, so objects are write-once and deleted or left to bucket lifecycle
// rules after their metadata expires.
type BlobStore struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewBlobStore creates the store using the default AWS configuration chain.
func NewBlobStore(ctx context.Context, cfg BlobStoreConfig) (*BlobStore, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &BlobStore{client: c, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (b *BlobStore) fullKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return path.Join(b.prefix, key)
}

// Put uploads an object under the configured bucket and prefix.
func (b *BlobStore) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	in := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	_, err := b.client.PutObject(ctx, in)
	return err
}

// Get fetches an object's streaming body. Caller must Close it.
func (b *BlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

// Delete removes the object at key.
func (b *BlobStore) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	return err
}

// Exists reports whether the object exists, treating 404/NotFound as a
// clean false rather than an error.
func (b *BlobStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.fullKey(key)),
	})
	if err == nil {
		return true, nil
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return false, nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}

	return false, err
}
