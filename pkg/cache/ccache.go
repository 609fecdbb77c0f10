package cache

import (
	"time"

	"github.com/karlseguin/ccache"
)

// CCache is an LRU of *Entry values bounded by total payload bytes.
// Entries are stored by pointer and must not be mutated after Set.
type CCache struct {
	c   *ccache.Cache
	ttl time.Duration
	counters
}

// NewCCache creates a ccache bounded to maxBytes of entry payload.
func NewCCache(maxBytes int64, ttl time.Duration) *CCache {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CCache{
		c:   ccache.New(ccache.Configure().MaxSize(maxBytes).ItemsToPrune(100)),
		ttl: ttl,
	}
}

func (c *CCache) Get(key string) (*Entry, error) {
	item := c.c.Get(key)
	if item == nil || item.Expired() {
		c.miss()
		return nil, ErrCacheMiss
	}
	e, ok := item.Value().(*Entry)
	if !ok {
		c.miss()
		return nil, ErrCacheMiss
	}
	c.hit()
	return e, nil
}

func (c *CCache) Set(e *Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	c.c.Set(e.Key, e, c.ttl)
	return nil
}

func (c *CCache) Stats() Stats { return c.snapshot() }

func (c *CCache) Close() error {
	c.c.Stop()
	return nil
}
