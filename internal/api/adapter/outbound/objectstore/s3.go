package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/anthanhphan/go-chunk-transfer/internal/api/domain"
	"github.com/anthanhphan/go-chunk-transfer/internal/api/port"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// s3DeleteLimit is the maximum number of keys per DeleteObjects call.
const s3DeleteLimit = 1000

// S3Store keeps chunk objects in one S3 (or S3 compatible) bucket.
type S3Store struct {
	client *s3.Client
	bucket string
}

var _ port.ObjectStore = (*S3Store)(nil)

// NewS3Store builds a client for the node's region, bucket and optional endpoint.
func NewS3Store(ctx context.Context, node domain.StorageNode) (*S3Store, error) {
	if node.Bucket == "" {
		return nil, fmt.Errorf("node %s: s3 bucket is required", node.ID)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(node.Region),
	}
	if node.Backend.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(node.Backend.AccessKey, node.Backend.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if node.Backend.Endpoint != "" {
			o.BaseEndpoint = aws.String(node.Backend.Endpoint)
		}
		o.UsePathStyle = node.Backend.UsePathStyle
	})
	return &S3Store{client: client, bucket: node.Bucket}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Head(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("head object %s: %w", key, err)
}

func (s *S3Store) Get(ctx context.Context, key string, offset, length int64) (io.ReadCloser, int64, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}
	if offset > 0 || length >= 0 {
		if length >= 0 {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
		} else {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
		}
	}

	out, err := s.client.GetObject(ctx, input)
	if err != nil {
		if isS3NotFound(err) {
			return nil, 0, domain.ErrObjectNotFound
		}
		return nil, 0, fmt.Errorf("get object %s: %w", key, err)
	}

	n := length
	if out.ContentLength != nil {
		n = *out.ContentLength
	}
	return out.Body, n, nil
}

func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// DeleteBatch issues DeleteObjects in pages of s3DeleteLimit keys.
func (s *S3Store) DeleteBatch(ctx context.Context, keys []string) error {
	failed := make(map[string]error)
	for start := 0; start < len(keys); start += s3DeleteLimit {
		end := start + s3DeleteLimit
		if end > len(keys) {
			end = len(keys)
		}
		page := keys[start:end]

		objects := make([]types.ObjectIdentifier, len(page))
		for i, k := range page {
			objects[i] = types.ObjectIdentifier{Key: aws.String(k)}
		}
		out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(s.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			for _, k := range page {
				failed[k] = err
			}
			continue
		}
		for _, e := range out.Errors {
			if e.Key == nil {
				continue
			}
			failed[*e.Key] = fmt.Errorf("%s: %s", aws.ToString(e.Code), aws.ToString(e.Message))
		}
	}
	if len(failed) > 0 {
		return &port.BatchDeleteError{Failed: failed}
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
