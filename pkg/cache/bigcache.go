package cache

import (
	"context"
	"errors"
	"time"

	"github.com/allegro/bigcache/v3"
)

// BigcacheOptions sizes the in-process bigcache.
type BigcacheOptions struct {
	TTL           time.Duration
	MaxEntryBytes int
	MaxMemoryMB   int
	Shards        int
}

// Bigcache keeps gob-encoded entries in an allegro/bigcache instance.
type Bigcache struct {
	bc *bigcache.BigCache
}

func NewBigcache(ctx context.Context, opt BigcacheOptions) (*Bigcache, error) {
	ttl := opt.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	cfg := bigcache.DefaultConfig(ttl)
	if opt.Shards > 0 {
		cfg.Shards = opt.Shards
	}
	cfg.CleanWindow = time.Minute
	if opt.MaxEntryBytes > 0 {
		cfg.MaxEntrySize = opt.MaxEntryBytes
	}
	cfg.HardMaxCacheSize = opt.MaxMemoryMB
	cfg.Verbose = false

	bc, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Bigcache{bc: bc}, nil
}

func (b *Bigcache) Get(key string) (*Entry, error) {
	data, err := b.bc.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	return decodeEntry(data)
}

func (b *Bigcache) Set(e *Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}
	return b.bc.Set(e.Key, data)
}

func (b *Bigcache) Stats() Stats {
	st := b.bc.Stats()
	return Stats{Hits: st.Hits, Misses: st.Misses}
}

func (b *Bigcache) Close() error { return b.bc.Close() }
