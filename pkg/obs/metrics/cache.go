package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"imgproxy/pkg/cache"
)

// CacheMetrics exports hit/miss counters of the object cache.
type CacheMetrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter

	mu         sync.Mutex
	prevHits   float64
	prevMisses float64
}

// NewCacheMetrics registers cache metrics on the provided registry. backend labels the series.
func NewCacheMetrics(reg *prometheus.Registry, backend string) *CacheMetrics {
	hits := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "imgproxy",
		Subsystem:   "cache",
		Name:        "hits_total",
		Help:        "Object cache hits since start.",
		ConstLabels: prometheus.Labels{"backend": backend},
	})
	misses := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "imgproxy",
		Subsystem:   "cache",
		Name:        "misses_total",
		Help:        "Object cache misses since start.",
		ConstLabels: prometheus.Labels{"backend": backend},
	})
	_ = reg.Register(hits)
	_ = reg.Register(misses)
	return &CacheMetrics{hits: hits, misses: misses}
}

// Observe pushes a Stats snapshot. Backends report absolute totals, so counters advance by the delta.
func (c *CacheMetrics) Observe(st cache.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	addDelta(&c.prevHits, float64(st.Hits), c.hits)
	addDelta(&c.prevMisses, float64(st.Misses), c.misses)
}

func addDelta(prev *float64, current float64, c prometheus.Counter) {
	delta := current - *prev
	if delta < 0 {
		// Backend counters were reset. Start from current.
		*prev = current
		return
	}
	if delta > 0 {
		c.Add(delta)
		*prev = current
	}
}

// StartPolling reads c.Stats() every interval and returns a stop function.
func (c *CacheMetrics) StartPolling(src interface{ Stats() cache.Stats }, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				c.Observe(src.Stats())
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
