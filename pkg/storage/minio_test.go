package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go"
)

type fakeMinio struct {
	info minio.ObjectInfo
	body string
	err  error
}

func (f fakeMinio) getObject(_ context.Context, bucket, key string) (io.ReadCloser, minio.ObjectInfo, error) {
	if f.err != nil {
		return nil, minio.ObjectInfo{}, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), f.info, nil
}

func TestMinioStore_Get(t *testing.T) {
	meta := http.Header{}
	meta.Set("Content-Language", "de")
	fake := fakeMinio{
		body: "gif89a",
		info: minio.ObjectInfo{
			Key:          "x.gif",
			ETag:         "feed",
			Size:         6,
			ContentType:  "image/gif",
			LastModified: time.Unix(1700000000, 0).UTC(),
			Metadata:     meta,
		},
	}
	s := &MinioStore{api: fake, bucket: "b"}
	obj, err := s.Get(context.Background(), "x.gif")
	if err != nil { t.Fatalf("Get: %v", err) }
	defer obj.Body.Close()
	if obj.HTTPEtag != `"feed"` { t.Fatalf("unexpected etag %q", obj.HTTPEtag) }
	if obj.HTTPMetadata.ContentType != "image/gif" || obj.HTTPMetadata.ContentLanguage != "de" {
		t.Fatalf("unexpected metadata %+v", obj.HTTPMetadata)
	}
}

func TestMinioStore_NotFound(t *testing.T) {
	s := &MinioStore{api: fakeMinio{err: minio.ErrorResponse{Code: "NoSuchKey", StatusCode: 404}}, bucket: "b"}
	if _, err := s.Get(context.Background(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	s = &MinioStore{api: fakeMinio{err: errors.New("dial tcp: refused")}, bucket: "b"}
	if _, err := s.Get(context.Background(), "x"); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected transport error, got %v", err)
	}
}
