package cache

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/daangn/minimemcached"
)

func TestMemcached(t *testing.T) {
	mock, err := minimemcached.Run(&minimemcached.Config{Port: 11219})
	if err != nil {
		t.Fatalf("Failed to start minimemcached: %v", err)
	}
	defer mock.Close()

	c := NewMemcached(2*time.Minute, 1<<20, "localhost:11219")
	defer c.Close()
	if err := c.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	exercise(t, c)

	// Binary payloads, including protocol delimiters, round trip intact.
	bin := sampleEntry("bin.png")
	bin.Data = []byte("\x89PNG\r\n\x1a\n\x00\xff")
	if err := c.Set(bin); err != nil {
		t.Fatalf("Set binary: %v", err)
	}
	got, err := c.Get(bin.Key)
	if err != nil {
		t.Fatalf("Get binary: %v", err)
	}
	compareEntry(t, got, bin)

	// A value not written by this backend is reported, not served.
	raw := memcache.New("localhost:11219")
	if err := raw.Set(&memcache.Item{Key: memcachedKey("foreign.png"), Value: []byte("foreign")}); err != nil {
		t.Fatalf("raw Set: %v", err)
	}
	if _, err := c.Get("foreign.png"); !errors.Is(err, ErrDeserialization) {
		t.Fatalf("expected ErrDeserialization, got %v", err)
	}
}

func TestMemcached_TooLarge(t *testing.T) {
	c := NewMemcached(time.Minute, 64, "localhost:11219")
	e := sampleEntry("big")
	e.Data = []byte(strings.Repeat("x", 128))
	if err := c.Set(e); !errors.Is(err, ErrEntryTooLarge) {
		t.Fatalf("expected ErrEntryTooLarge, got %v", err)
	}
}

func TestMemcachedKey(t *testing.T) {
	k := memcachedKey("folder/with spaces/\x00.png")
	if len(k) > 250 || strings.ContainsAny(k, " \x00\n") {
		t.Fatalf("invalid memcached key %q", k)
	}
	if memcachedKey("a") == memcachedKey("b") {
		t.Fatalf("keys must differ")
	}
}
