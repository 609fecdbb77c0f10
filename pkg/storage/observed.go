package storage

import (
	"context"
	"time"
)

// Observer receives one callback per store operation.
type Observer interface {
	Observe(op string, bytes int64, err error, dur time.Duration)
}

// Observed reports every Get of the wrapped store to an Observer.
type Observed struct {
	next ObjectStore
	obs  Observer
	op   string
}

// NewObserved wraps next; op labels the observations (e.g. "get", "cache_get").
func NewObserved(next ObjectStore, obs Observer, op string) *Observed {
	if op == "" {
		op = "get"
	}
	return &Observed{next: next, obs: obs, op: op}
}

func (s *Observed) Get(ctx context.Context, key string) (*Object, error) {
	start := time.Now()
	obj, err := s.next.Get(ctx, key)
	var n int64
	if err == nil && obj.Size > 0 {
		n = obj.Size
	}
	s.obs.Observe(s.op, n, err, time.Since(start))
	return obj, err
}
