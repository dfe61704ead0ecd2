// Package cache implements keyed read-through caching in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// LoadFunc fetches the authoritative value for key on a miss.
type LoadFunc[T any] func(ctx context.Context, key string) (T, error)

// ReadThrough caches values of type T as JSON under "<prefix>:<name>:<key>".
// A nil Redis client turns every Get into a direct load. Redis failures
// are logged and fall back to the loader; they never fail a read.
type ReadThrough[T any] struct {
	rdb  *redis.Client
	ns   string
	ttl  time.Duration
	load LoadFunc[T]
}

// New returns a ReadThrough for one entity kind.
func New[T any](rdb *redis.Client, prefix, name string, ttl time.Duration, load LoadFunc[T]) *ReadThrough[T] {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if prefix == "" {
		prefix = "cache"
	}
	return &ReadThrough[T]{rdb: rdb, ns: prefix + ":" + name + ":", ttl: ttl, load: load}
}

func (c *ReadThrough[T]) key(k string) string { return c.ns + k }

// Get returns the cached value for key, loading and storing it on a miss.
// Loader errors are returned as is and nothing is cached.
func (c *ReadThrough[T]) Get(ctx context.Context, key string) (T, error) {
	if c.rdb != nil {
		bs, err := c.rdb.Get(ctx, c.key(key)).Bytes()
		switch {
		case err == nil:
			var v T
			if jerr := json.Unmarshal(bs, &v); jerr == nil {
				return v, nil
			}
			log.Warn().Str("key", c.key(key)).Msg("cache: dropping undecodable entry")
		case !errors.Is(err, redis.Nil):
			log.Warn().Err(err).Str("key", c.key(key)).Msg("cache: get failed")
		}
	}

	v, err := c.load(ctx, key)
	if err != nil {
		return v, err
	}
	c.Set(ctx, key, v)
	return v, nil
}

// Set stores v under key with the configured TTL.
func (c *ReadThrough[T]) Set(ctx context.Context, key string, v T) {
	if c.rdb == nil {
		return
	}
	bs, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", c.key(key)).Msg("cache: encode failed")
		return
	}
	if err := c.rdb.Set(ctx, c.key(key), bs, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", c.key(key)).Msg("cache: set failed")
	}
}

// Invalidate removes key so the next Get reloads it.
func (c *ReadThrough[T]) Invalidate(ctx context.Context, key string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.key(key)).Err(); err != nil {
		log.Warn().Err(err).Str("key", c.key(key)).Msg("cache: invalidate failed")
	}
}
