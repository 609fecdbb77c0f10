package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func sampleEntry(key string) *Entry {
	return &Entry{
		Key:      key,
		ETag:     "d41d8cd9",
		Uploaded: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Header:   map[string][]string{"Content-Type": {"image/png"}},
		Data:     []byte("png-bytes"),
	}
}

func compareEntry(t *testing.T, got, want *Entry) {
	t.Helper()
	if got.Key != want.Key || got.ETag != want.ETag || string(got.Data) != string(want.Data) {
		t.Fatalf("entry mismatch: got %+v want %+v", got, want)
	}
	if !got.Uploaded.Equal(want.Uploaded) {
		t.Fatalf("uploaded mismatch: %v vs %v", got.Uploaded, want.Uploaded)
	}
	if got.Header["Content-Type"][0] != want.Header["Content-Type"][0] {
		t.Fatalf("header mismatch: %v", got.Header)
	}
}

// exercise runs the behaviour every backend must share.
func exercise(t *testing.T, c Cache) {
	t.Helper()
	if _, err := c.Get("img/missing.png"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
	want := sampleEntry("img/a b/ü.png")
	if err := c.Set(want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(want.Key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	compareEntry(t, got, want)

	if err := c.Set(nil); !errors.Is(err, ErrEntryNil) {
		t.Fatalf("expected ErrEntryNil, got %v", err)
	}
	if err := c.Set(&Entry{}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	st := c.Stats()
	if st.Hits < 1 || st.Misses < 1 {
		t.Fatalf("expected hits and misses recorded, got %+v", st)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	want := sampleEntry("k")
	b, err := encodeEntry(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := decodeEntry(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	compareEntry(t, got, want)

	if _, err := decodeEntry([]byte("garbage")); !errors.Is(err, ErrDeserialization) {
		t.Fatalf("expected ErrDeserialization, got %v", err)
	}
}

func TestCCache(t *testing.T) {
	c := NewCCache(1<<20, time.Minute)
	defer c.Close()
	exercise(t, c)
}

func TestCCache_Expiry(t *testing.T) {
	c := NewCCache(1<<20, time.Millisecond)
	defer c.Close()
	if err := c.Set(sampleEntry("k")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, err := c.Get("k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired entry to miss, got %v", err)
	}
}

func TestBigcache(t *testing.T) {
	c, err := NewBigcache(context.Background(), BigcacheOptions{TTL: time.Minute, MaxEntryBytes: 4096, MaxMemoryMB: 8, Shards: 16})
	if err != nil {
		t.Fatalf("NewBigcache: %v", err)
	}
	defer c.Close()
	exercise(t, c)
}
