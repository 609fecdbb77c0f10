package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go"
)

// MinioOptions configures a MinioStore.
type MinioOptions struct {
	Endpoint  string // host:port, no scheme
	AccessKey string
	SecretKey string
	Secure    bool
	Bucket    string
	Prefix    string
}

// minioGetter is the slice of the minio client MinioStore needs.
type minioGetter interface {
	getObject(ctx context.Context, bucket, key string) (io.ReadCloser, minio.ObjectInfo, error)
}

type minioClient struct {
	c *minio.Client
}

func (m minioClient) getObject(ctx context.Context, bucket, key string) (io.ReadCloser, minio.ObjectInfo, error) {
	obj, err := m.c.GetObjectWithContext(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, minio.ObjectInfo{}, err
	}
	// GetObject is lazy; Stat performs the request and surfaces NoSuchKey.
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, minio.ObjectInfo{}, err
	}
	return obj, info, nil
}

// MinioStore reads objects through the minio client.
type MinioStore struct {
	api    minioGetter
	bucket string
	prefix string
}

// NewMinioStore connects a minio client for opt.Bucket.
func NewMinioStore(opt MinioOptions) (*MinioStore, error) {
	if opt.Bucket == "" {
		return nil, fmt.Errorf("minio: bucket is required")
	}
	c, err := minio.New(opt.Endpoint, opt.AccessKey, opt.SecretKey, opt.Secure)
	if err != nil {
		return nil, fmt.Errorf("minio: client: %w", err)
	}
	return &MinioStore{api: minioClient{c: c}, bucket: opt.Bucket, prefix: opt.Prefix}, nil
}

func (m *MinioStore) Get(ctx context.Context, key string) (*Object, error) {
	rc, info, err := m.api.getObject(ctx, m.bucket, m.prefix+key)
	if err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "NoSuchKey", "NotFound":
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("minio get %q: %w", key, err)
	}
	etag := UnquoteETag(info.ETag)
	return &Object{
		Key:      key,
		Body:     rc,
		Size:     info.Size,
		ETag:     etag,
		HTTPEtag: QuoteETag(etag),
		Uploaded: info.LastModified,
		HTTPMetadata: HTTPMetadata{
			ContentType:        info.ContentType,
			ContentLanguage:    info.Metadata.Get("Content-Language"),
			ContentDisposition: info.Metadata.Get("Content-Disposition"),
			ContentEncoding:    info.Metadata.Get("Content-Encoding"),
			CacheControl:       info.Metadata.Get("Cache-Control"),
		},
	}, nil
}
