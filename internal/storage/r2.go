package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// R2Storage keeps objects in a Cloudflare R2 bucket through its
// S3-compatible API.
type R2Storage struct {
	client *s3.Client
	bucket string
	prefix string // "uploads/" or "output/"; slash-terminated or empty
	logger *slog.Logger
}

// NewR2Storage builds an S3 client for the account's R2 endpoint.
func NewR2Storage(cfg R2Config, logger *slog.Logger) (*R2Storage, error) {
	if cfg.AccountID == "" || cfg.BucketName == "" {
		return nil, errors.New("r2: account id and bucket are required")
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}
	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	client := s3.NewFromConfig(aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	}, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}

	logger.Info("initialized R2 storage", "bucket", cfg.BucketName, "prefix", prefix)

	return &R2Storage{client: client, bucket: cfg.BucketName, prefix: prefix, logger: logger}, nil
}

// Put uploads the object with If-None-Match: *, so R2 itself refuses to
// replace an existing key. The body is buffered because request signing
// needs a seekable reader and the size limit must hold before sending.
func (s *R2Storage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) (Object, error) {
	if err := checkKey(key); err != nil {
		return Object{}, s.fail("put", key, err)
	}

	src := data
	if opts.MaxSize > 0 {
		src = io.LimitReader(data, opts.MaxSize+1)
	}
	buf, err := io.ReadAll(src)
	if err != nil {
		return Object{}, s.fail("put", key, fmt.Errorf("read body: %w", err))
	}
	if opts.MaxSize > 0 && int64(len(buf)) > opts.MaxSize {
		return Object{}, s.fail("put", key, ErrTooLarge)
	}

	contentType := DetectContentType(opts.ContentType, key)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.prefix + key),
		Body:          bytes.NewReader(buf),
		ContentLength: aws.Int64(int64(len(buf))),
		ContentType:   aws.String(contentType),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		return Object{}, s.fail("put", key, classify(err))
	}

	s.logger.Debug("stored object in R2", "key", key, "size", len(buf), "content_type", contentType)
	return Object{Key: key, Size: int64(len(buf)), ContentType: contentType}, nil
}

// Stat issues a HEAD request for the object.
func (s *R2Storage) Stat(ctx context.Context, key string) (Object, error) {
	if err := checkKey(key); err != nil {
		return Object{}, s.fail("stat", key, err)
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		return Object{}, s.fail("stat", key, classify(err))
	}
	return Object{
		Key:         key,
		Size:        aws.ToInt64(out.ContentLength),
		ContentType: aws.ToString(out.ContentType),
	}, nil
}

// Delete removes the object. S3 semantics make a missing key a success.
func (s *R2Storage) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return s.fail("delete", key, err)
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		return s.fail("delete", key, classify(err))
	}

	s.logger.Debug("deleted object from R2", "key", key)
	return nil
}

func (s *R2Storage) fail(op, key string, err error) error {
	return &StorageError{Backend: ProviderR2, Op: op, Key: key, Err: err}
}

// classify maps SDK errors onto the package sentinels, keeping the
// original error in the chain.
func classify(err error) error {
	var (
		notFound  *types.NotFound
		noSuchKey *types.NoSuchKey
	)
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case "PreconditionFailed":
			return fmt.Errorf("%w: %w", ErrKeyExists, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
	}

	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) {
		switch statusErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case http.StatusPreconditionFailed:
			return fmt.Errorf("%w: %w", ErrKeyExists, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
	}
	return err
}
