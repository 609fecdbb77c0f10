package cache

import (
	"time"

	"gopkg.in/redis.v4"
)

// RedisOptions addresses a single redis server.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// Redis stores gob-encoded entries as plain string values with an expiry.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	counters
}

func NewRedis(opt RedisOptions) *Redis {
	prefix := opt.KeyPrefix
	if prefix == "" {
		prefix = "img:"
	}
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     opt.Addr,
			Password: opt.Password,
			DB:       opt.DB,
		}),
		prefix: prefix,
		ttl:    opt.TTL,
	}
}

func (r *Redis) Get(key string) (*Entry, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	data, err := r.client.Get(r.prefix + key).Bytes()
	if err == redis.Nil {
		r.miss()
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	e, err := decodeEntry(data)
	if err != nil {
		return nil, err
	}
	r.hit()
	return e, nil
}

func (r *Redis) Set(e *Entry) error {
	if err := validate(e); err != nil {
		return err
	}
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}
	return r.client.Set(r.prefix+e.Key, data, r.ttl).Err()
}

// Ping checks connectivity.
func (r *Redis) Ping() error { return r.client.Ping().Err() }

func (r *Redis) Stats() Stats { return r.snapshot() }

func (r *Redis) Close() error { return r.client.Close() }
