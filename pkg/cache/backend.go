package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by a Backend when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Backend stores raw bytes under string keys. Implementations report
// failures honestly; Cache is the layer that absorbs them.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Name() string
}

// --- Redis ---

// RedisBackend stores entries in Redis.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Name() string { return "redis" }

// --- In-process ---

// MemoryBackend keeps entries in process memory. It suits single-instance
// deployments; entries are not shared between replicas.
type MemoryBackend struct {
	store *gocache.Cache
}

// NewMemoryBackend creates an in-process backend that purges expired entries
// every cleanup interval.
func NewMemoryBackend(cleanup time.Duration) *MemoryBackend {
	return &MemoryBackend{store: gocache.New(gocache.NoExpiration, cleanup)}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := b.store.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("memory get: unexpected value type %T", v)
	}
	return data, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cpy := make([]byte, len(value))
	copy(cpy, value)
	b.store.Set(key, cpy, ttl)
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.store.Delete(key)
	return nil
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }

func (b *MemoryBackend) Name() string { return "memory" }

// Len returns the number of stored entries, including expired ones not yet
// purged.
func (b *MemoryBackend) Len() int {
	return b.store.ItemCount()
}

// --- Disabled ---

// NopBackend never stores anything. Every read is a miss.
type NopBackend struct{}

func (NopBackend) Get(context.Context, string) ([]byte, error)              { return nil, ErrMiss }
func (NopBackend) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NopBackend) Delete(context.Context, string) error                     { return nil }
func (NopBackend) Ping(context.Context) error                               { return nil }
func (NopBackend) Name() string                                             { return "none" }

// Backend kinds accepted by OpenBackend.
const (
	KindRedis  = "redis"
	KindMemory = "memory"
	KindNone   = "none"
)

// OpenBackend returns the backend for kind. For KindRedis the client is
// created without dialing and returned so the caller can close it; it is nil
// for the other kinds. An unknown kind disables caching.
func OpenBackend(kind string, newClient func() *redis.Client) (Backend, *redis.Client) {
	switch kind {
	case KindRedis:
		client := newClient()
		return NewRedisBackend(client), client
	case KindMemory:
		return NewMemoryBackend(5 * time.Minute), nil
	default:
		return NopBackend{}, nil
	}
}
