package storage

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sync"
	"time"
)

type memObject struct {
	data     []byte
	etag     string
	uploaded time.Time
	meta     HTTPMetadata
}

// MemoryStore is a simple in-memory ObjectStore suitable for development
// and unit tests. It is NOT durable and should not be used in production.
type MemoryStore struct {
	mu   sync.RWMutex
	objs map[string]memObject
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objs: make(map[string]memObject)}
}

// Put stores a copy of data under key and returns its md5 etag.
func (m *MemoryStore) Put(_ context.Context, key string, data []byte, meta HTTPMetadata) string {
	sum := md5.Sum(data)
	etag := hex.EncodeToString(sum[:])
	cp := append([]byte(nil), data...)
	m.mu.Lock()
	m.objs[key] = memObject{data: cp, etag: etag, uploaded: time.Now().UTC(), meta: meta}
	m.mu.Unlock()
	return etag
}

// Get returns a reader over the stored bytes.
func (m *MemoryStore) Get(_ context.Context, key string) (*Object, error) {
	m.mu.RLock()
	o, ok := m.objs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &Object{
		Key:          key,
		Body:         io.NopCloser(bytes.NewReader(o.data)),
		Size:         int64(len(o.data)),
		ETag:         o.etag,
		HTTPEtag:     QuoteETag(o.etag),
		Uploaded:     o.uploaded,
		HTTPMetadata: o.meta,
	}, nil
}

// Delete removes key. Missing keys return ErrNotFound.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objs[key]; !ok {
		return ErrNotFound
	}
	delete(m.objs, key)
	return nil
}

// Len reports the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objs)
}
