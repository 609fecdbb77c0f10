package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"imgproxy/pkg/cache"
)

// Cached is a read-through ObjectStore: small objects are served from c after
// their first read, everything else streams from next.
type Cached struct {
	next     ObjectStore
	c        cache.Cache
	maxBytes int64
}

// NewCached wraps next with c. Objects larger than maxBytes (or of unknown size) bypass the cache.
func NewCached(next ObjectStore, c cache.Cache, maxBytes int64) *Cached {
	return &Cached{next: next, c: c, maxBytes: maxBytes}
}

func (s *Cached) Get(ctx context.Context, key string) (*Object, error) {
	e, err := s.c.Get(key)
	switch {
	case err == nil:
		return objectFromEntry(e), nil
	case errors.Is(err, cache.ErrCacheMiss):
	default:
		// The store stays authoritative; a broken cache only costs latency.
		slog.Warn("cache get failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	obj, err := s.next.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if obj.Size < 0 || obj.Size > s.maxBytes {
		return obj, nil
	}

	data, err := io.ReadAll(io.LimitReader(obj.Body, s.maxBytes+1))
	if err != nil {
		obj.Body.Close()
		return nil, err
	}
	if int64(len(data)) > s.maxBytes {
		// Size understated by the backend; hand back what we read plus the rest.
		obj.Body = multiReadCloser{Reader: io.MultiReader(bytes.NewReader(data), obj.Body), Closer: obj.Body}
		return obj, nil
	}
	obj.Body.Close()

	if err := s.c.Set(entryFromObject(obj, data)); err != nil {
		slog.Warn("cache set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	obj.Body = io.NopCloser(bytes.NewReader(data))
	obj.Size = int64(len(data))
	return obj, nil
}

type multiReadCloser struct {
	io.Reader
	io.Closer
}

func entryFromObject(o *Object, data []byte) *cache.Entry {
	h := http.Header{}
	o.WriteHTTPMetadata(h)
	// Length and modification time are rebuilt from the entry itself.
	h.Del("Content-Length")
	h.Del("Last-Modified")
	return &cache.Entry{
		Key:      o.Key,
		ETag:     o.ETag,
		Uploaded: o.Uploaded,
		Header:   h,
		Data:     data,
	}
}

func objectFromEntry(e *cache.Entry) *Object {
	h := http.Header(e.Header)
	meta := HTTPMetadata{
		ContentType:        h.Get("Content-Type"),
		ContentLanguage:    h.Get("Content-Language"),
		ContentDisposition: h.Get("Content-Disposition"),
		ContentEncoding:    h.Get("Content-Encoding"),
		CacheControl:       h.Get("Cache-Control"),
	}
	if v := h.Get("Expires"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			meta.CacheExpiry = &t
		}
	}
	return &Object{
		Key:          e.Key,
		Body:         io.NopCloser(bytes.NewReader(e.Data)),
		Size:         int64(len(e.Data)),
		ETag:         e.ETag,
		HTTPEtag:     QuoteETag(e.ETag),
		Uploaded:     e.Uploaded,
		HTTPMetadata: meta,
	}
}
