package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"
)

// ErrNotFound is returned by ObjectStore.Get when no object exists for the key.
// Backends map their native not-found conditions onto it.
var ErrNotFound = errors.New("object not found")

// HTTPMetadata is the subset of HTTP headers an object carries with it.
// Empty fields are not written.
type HTTPMetadata struct {
	ContentType        string     `json:"contentType,omitempty"`
	ContentLanguage    string     `json:"contentLanguage,omitempty"`
	ContentDisposition string     `json:"contentDisposition,omitempty"`
	ContentEncoding    string     `json:"contentEncoding,omitempty"`
	CacheControl       string     `json:"cacheControl,omitempty"`
	CacheExpiry        *time.Time `json:"cacheExpiry,omitempty"`
}

// Object is a stored object returned by Get. The caller owns Body and must close it.
type Object struct {
	Key          string
	Body         io.ReadCloser
	Size         int64
	ETag         string // unquoted content hash
	HTTPEtag     string // quoted form suitable for the ETag header
	Uploaded     time.Time
	HTTPMetadata HTTPMetadata
}

// WriteHTTPMetadata copies the object's HTTP metadata into h, along with
// Content-Length and Last-Modified when known.
func (o *Object) WriteHTTPMetadata(h http.Header) {
	m := o.HTTPMetadata
	if m.ContentType != "" {
		h.Set("Content-Type", m.ContentType)
	}
	if m.ContentLanguage != "" {
		h.Set("Content-Language", m.ContentLanguage)
	}
	if m.ContentDisposition != "" {
		h.Set("Content-Disposition", m.ContentDisposition)
	}
	if m.ContentEncoding != "" {
		h.Set("Content-Encoding", m.ContentEncoding)
	}
	if m.CacheControl != "" {
		h.Set("Cache-Control", m.CacheControl)
	}
	if m.CacheExpiry != nil && !m.CacheExpiry.IsZero() {
		h.Set("Expires", m.CacheExpiry.UTC().Format(http.TimeFormat))
	}
	if o.Size >= 0 && o.Body != nil {
		h.Set("Content-Length", strconv.FormatInt(o.Size, 10))
	}
	if !o.Uploaded.IsZero() {
		h.Set("Last-Modified", o.Uploaded.UTC().Format(http.TimeFormat))
	}
}

// ObjectStore is a read-only key/value object store.
//
// Implementations MUST be safe for concurrent use. Get returns ErrNotFound
// (possibly wrapped) when the key does not exist; any other error is an
// I/O fault of the backend.
type ObjectStore interface {
	Get(ctx context.Context, key string) (*Object, error)
}

// QuoteETag returns the quoted HTTP form of a bare etag. An empty etag stays empty.
func QuoteETag(s string) string {
	if s == "" {
		return ""
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s
	}
	return "\"" + s + "\""
}

// UnquoteETag strips surrounding quotes, as returned by S3-compatible services.
func UnquoteETag(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
