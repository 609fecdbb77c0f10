package cache

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// Memcached stores gob-encoded entries in a memcached cluster.
// Object keys may contain characters memcached rejects, so keys are hashed.
// Values are base64 text so they survive servers and proxies that refuse
// arbitrary bytes in the data block.
type Memcached struct {
	client   *memcache.Client
	ttl      int32
	maxBytes int
	counters
}

// NewMemcached creates a client for servers. ttl is truncated to whole seconds
// (memcached caps relative TTLs at 30 days).
func NewMemcached(ttl time.Duration, maxEntryBytes int, servers ...string) *Memcached {
	secs := int32(ttl / time.Second)
	if secs > 30*24*3600 {
		secs = 30 * 24 * 3600
	}
	return &Memcached{
		client:   memcache.New(servers...),
		ttl:      secs,
		maxBytes: maxEntryBytes,
	}
}

func (m *Memcached) Get(key string) (*Entry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	it, err := m.client.Get(memcachedKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			m.miss()
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	raw, err := base64.StdEncoding.DecodeString(string(it.Value))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeserialization, err)
	}
	e, err := decodeEntry(raw)
	if err != nil {
		return nil, err
	}
	// Hash collisions are theoretical, but a mismatched key must never be served.
	if e.Key != key {
		m.miss()
		return nil, ErrCacheMiss
	}
	m.hit()
	return e, nil
}

func (m *Memcached) Set(e *Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	raw, err := encodeEntry(e)
	if err != nil {
		return err
	}
	data := []byte(base64.StdEncoding.EncodeToString(raw))
	if m.maxBytes > 0 && len(data) > m.maxBytes {
		return ErrEntryTooLarge
	}
	return m.client.Set(&memcache.Item{
		Key:        memcachedKey(e.Key),
		Value:      data,
		Expiration: m.ttl,
	})
}

// Ping checks connectivity to all servers.
func (m *Memcached) Ping() error { return m.client.Ping() }

func (m *Memcached) Stats() Stats { return m.snapshot() }

// Close is a no-op; idle connections are reaped by the client.
func (m *Memcached) Close() error { return nil }

func memcachedKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "img:" + hex.EncodeToString(sum[:])
}
