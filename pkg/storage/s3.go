package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Options configures an S3Store. Endpoint and ForcePathStyle make it usable
// against S3-compatible services (R2, MinIO, Ceph RGW).
type S3Options struct {
	Bucket         string
	Prefix         string // optional key prefix inside the bucket
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// S3Store reads objects from a single S3 bucket.
type S3Store struct {
	api    s3iface.S3API
	bucket string
	prefix string
}

// NewS3Store builds an S3 client from opt. Static credentials are used when set,
// otherwise the SDK default chain applies.
func NewS3Store(opt S3Options) (*S3Store, error) {
	if strings.TrimSpace(opt.Bucket) == "" {
		return nil, fmt.Errorf("s3: bucket is required")
	}
	region := opt.Region
	if region == "" {
		region = "us-east-1"
	}
	cfg := aws.NewConfig().
		WithRegion(region).
		WithS3ForcePathStyle(opt.ForcePathStyle)
	if opt.Endpoint != "" {
		cfg = cfg.WithEndpoint(opt.Endpoint)
	}
	if opt.AccessKey != "" && opt.SecretKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(opt.AccessKey, opt.SecretKey, ""))
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("s3: session: %w", err)
	}
	return NewS3StoreWithClient(s3.New(sess), opt.Bucket, opt.Prefix), nil
}

// NewS3StoreWithClient wraps an existing client; used by tests to inject fakes.
func NewS3StoreWithClient(api s3iface.S3API, bucket, prefix string) *S3Store {
	return &S3Store{api: api, bucket: bucket, prefix: prefix}
}

func (s *S3Store) Get(ctx context.Context, key string) (*Object, error) {
	out, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %q: %w", key, err)
	}
	size := int64(-1)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	etag := UnquoteETag(aws.StringValue(out.ETag))
	return &Object{
		Key:      key,
		Body:     out.Body,
		Size:     size,
		ETag:     etag,
		HTTPEtag: QuoteETag(etag),
		Uploaded: aws.TimeValue(out.LastModified),
		HTTPMetadata: HTTPMetadata{
			ContentType:        aws.StringValue(out.ContentType),
			ContentLanguage:    aws.StringValue(out.ContentLanguage),
			ContentDisposition: aws.StringValue(out.ContentDisposition),
			ContentEncoding:    aws.StringValue(out.ContentEncoding),
			CacheControl:       aws.StringValue(out.CacheControl),
		},
	}, nil
}

func isS3NotFound(err error) bool {
	var rf awserr.RequestFailure
	if errors.As(err, &rf) && rf.StatusCode() == http.StatusNotFound {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
