// Package cache keeps recently derived series so the polling endpoints do
// not re-read the CSV files on every tick.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Cache stores opaque values under string keys with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process cache.
type Memory struct {
	store *gocache.Cache
}

// NewMemory returns an in-process cache whose entries default to ttl.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{store: gocache.New(ttl, 2*ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	v, found := m.store.Get(key)
	if !found {
		return nil, false
	}
	b, ok := v.([]byte)
	return b, ok
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.store.Set(key, value, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.store.Delete(key)
	return nil
}

// Redis is a cache shared between server instances.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the redis server at addr. Keys are namespaced
// under "genio:".
func NewRedis(addr string) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	return &Redis{client: rdb, prefix: "genio:"}
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

// New picks redis when addr is set and reachable, the in-process cache
// otherwise. The returned flag reports whether redis is in use.
func New(ctx context.Context, addr string, ttl time.Duration) (Cache, bool) {
	if addr == "" {
		return NewMemory(ttl), false
	}
	r := NewRedis(addr)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.Ping(pingCtx); err != nil {
		r.Close()
		return NewMemory(ttl), false
	}
	return r, true
}
