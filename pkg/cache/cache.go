// Package cache holds small-object caches that sit in front of the object store.
//
// Backends store whole Entries. Absence from the store is never cached; a cache
// only ever answers for objects it has seen.
package cache

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

var (
	ErrCacheMiss       = errors.New("cache miss")
	ErrInvalidKey      = errors.New("key is invalid")
	ErrEntryNil        = errors.New("entry is nil")
	ErrEntryTooLarge   = errors.New("entry too large")
	ErrSerialization   = errors.New("serialization error")
	ErrDeserialization = errors.New("deserialization error")
)

// Entry is a cached object: its bytes plus what is needed to rebuild the response headers.
type Entry struct {
	Key      string
	ETag     string
	Uploaded time.Time
	Header   map[string][]string
	Data     []byte
}

// Size reports the payload size. ccache uses it to budget memory.
func (e *Entry) Size() int64 { return int64(len(e.Data)) }

// Stats is a snapshot of cache effectiveness counters.
type Stats struct {
	Hits   int64
	Misses int64
}

// Cache is implemented by every backend. Get returns ErrCacheMiss when key is absent.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (*Entry, error)
	Set(e *Entry) error
	Stats() Stats
	Close() error
}

// counters tracks hits/misses for backends without native stats.
type counters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

func (c *counters) hit()  { c.hits.Add(1) }
func (c *counters) miss() { c.misses.Add(1) }

func (c *counters) snapshot() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func encodeEntry(e *Entry) ([]byte, error) {
	var b bytes.Buffer
	if err := gob.NewEncoder(&b).Encode(e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return b.Bytes(), nil
}

func decodeEntry(data []byte) (*Entry, error) {
	var e Entry
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&e); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeserialization, err)
	}
	return &e, nil
}

func validate(e *Entry) error {
	if e == nil {
		return ErrEntryNil
	}
	if e.Key == "" {
		return ErrInvalidKey
	}
	return nil
}
