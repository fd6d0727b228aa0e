// Package storage provides object-store implementations of the blob
// capability consumed by the catalog and package subsystems.
package storage

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/reelpack/reelpack/pkg/errors"
	"github.com/reelpack/reelpack/pkg/interfaces"
)

// S3Store implements ObjectStore over an S3 (or S3-compatible) bucket.
type S3Store struct {
	client   *s3.Client
	bucket   string
	region   string
	endpoint string
	logger   interfaces.Logger
}

// NewS3Store creates a store for the given bucket. An endpoint may be set for
// S3-compatible services; empty means AWS.
func NewS3Store(ctx context.Context, bucket, region, endpoint string, logger interfaces.Logger) (*S3Store, error) {
	if bucket == "" {
		return nil, errors.Configuration("storage bucket is not configured")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:   client,
		bucket:   bucket,
		region:   region,
		endpoint: endpoint,
		logger:   logger,
	}, nil
}

// Get retrieves the full contents of an object.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFound(fmt.Sprintf("object %s not found", key))
		}
		return nil, errors.Transport(fmt.Sprintf("failed to get object %s", key), err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, errors.Transport(fmt.Sprintf("failed to read object %s", key), err)
	}
	return data, nil
}

// Put stores an object.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return errors.Transport(fmt.Sprintf("failed to upload object %s", key), err)
	}
	return nil
}

// Delete removes an object.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return errors.Transport(fmt.Sprintf("failed to delete object %s", key), err)
	}
	return nil
}

// List enumerates objects under a prefix.
func (s *S3Store) List(ctx context.Context, prefix string, maxKeys int) ([]interfaces.ObjectInfo, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	if maxKeys > 0 {
		input.MaxKeys = aws.Int32(int32(maxKeys))
	}

	var objects []interfaces.ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.Transport(fmt.Sprintf("failed to list prefix %s", prefix), err)
		}
		for _, obj := range page.Contents {
			info := interfaces.ObjectInfo{
				Key:  aws.ToString(obj.Key),
				Size: aws.ToInt64(obj.Size),
				ETag: strings.Trim(aws.ToString(obj.ETag), `"`),
			}
			if obj.LastModified != nil {
				info.LastModified = *obj.LastModified
			}
			objects = append(objects, info)
			if maxKeys > 0 && len(objects) >= maxKeys {
				return objects, nil
			}
		}
	}
	return objects, nil
}

// Exists reports whether an object is present.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, errors.Transport(fmt.Sprintf("failed to head object %s", key), err)
	}
	return true, nil
}

// PublicURL returns the externally reachable URL for a key.
func (s *S3Store) PublicURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(s.endpoint, "/"), s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key)
}

// Bucket returns the backing bucket name.
func (s *S3Store) Bucket() string {
	return s.bucket
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if stderrors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if stderrors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
