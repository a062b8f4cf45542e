// Package cache is a best-effort cache-aside layer in front of an
// authoritative store.
//
// A Cache never returns a backend error to its caller: an unreachable or slow
// backend reads as a miss and writes become no-ops, so a degraded cache only
// costs latency. Writers update the store first and then call Invalidate;
// the cache is never updated in place.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL bounds how long an entry may be served after it was loaded.
	DefaultTTL = time.Hour

	// DefaultOpTimeout bounds a single backend call. A slower backend is
	// treated as a miss.
	DefaultOpTimeout = 250 * time.Millisecond

	// DefaultLoadTimeout bounds a shared load once it no longer follows any
	// single caller's context.
	DefaultLoadTimeout = 10 * time.Second
)

// Options configures a Cache.
type Options struct {
	// Name labels metrics and logs, e.g. "profile".
	Name string
	// Prefix is prepended to every key, e.g. "profile:".
	Prefix    string
	TTL         time.Duration
	OpTimeout   time.Duration
	LoadTimeout time.Duration
	Logger      *slog.Logger
}

// Stats is a point-in-time summary of cache activity.
type Stats struct {
	Name           string  `json:"name"`
	Backend        string  `json:"backend"`
	BackendHealthy bool    `json:"backend_healthy"`
	Hits           int64   `json:"hits"`
	Misses         int64   `json:"misses"`
	Errors         int64   `json:"errors"`
	HitRate        float64 `json:"hit_rate"`
	TTLSeconds     float64 `json:"ttl_seconds"`
}

// Cache is a typed JSON cache over a Backend.
type Cache[T any] struct {
	backend     Backend
	name        string
	prefix      string
	ttl         time.Duration
	opTimeout   time.Duration
	loadTimeout time.Duration
	logger      *slog.Logger
	group       singleflight.Group

	// loading tracks keys with a load in flight. Invalidate bumps the key's
	// generation so a load that overlapped it never leaves its value behind.
	mu      sync.Mutex
	loading map[string]*loadState

	hits   atomic.Int64
	misses atomic.Int64
	errs   atomic.Int64
}

type loadState struct {
	generation uint64
	loads      int
}

// New creates a Cache over backend.
func New[T any](backend Backend, opts Options) *Cache[T] {
	if backend == nil {
		backend = NopBackend{}
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = DefaultLoadTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Name == "" {
		opts.Name = "default"
	}
	return &Cache[T]{
		backend:     backend,
		name:        opts.Name,
		prefix:      opts.Prefix,
		ttl:         opts.TTL,
		opTimeout:   opts.OpTimeout,
		loadTimeout: opts.LoadTimeout,
		loading:     make(map[string]*loadState),
		logger:      opts.Logger.With(slog.String("cache", opts.Name), slog.String("backend", backend.Name())),
	}
}

// Get returns the cached value for key. Any backend failure, an expired
// entry, or an undecodable entry reads as a miss.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	var zero T

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	data, err := c.backend.Get(opCtx, c.prefix+key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.recordError(ctx, "get", key, err)
		}
		c.misses.Add(1)
		cacheOps.WithLabelValues(c.name, "miss").Inc()
		return zero, false
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.recordError(ctx, "decode", key, err)
		c.misses.Add(1)
		cacheOps.WithLabelValues(c.name, "miss").Inc()
		c.Invalidate(ctx, key)
		return zero, false
	}

	c.hits.Add(1)
	cacheOps.WithLabelValues(c.name, "hit").Inc()
	return v, true
}

// Set stores value under key with the configured TTL. Failures are logged.
func (c *Cache[T]) Set(ctx context.Context, key string, value T) {
	data, err := json.Marshal(value)
	if err != nil {
		c.recordError(ctx, "encode", key, err)
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.backend.Set(opCtx, c.prefix+key, data, c.ttl); err != nil {
		c.recordError(ctx, "set", key, err)
		return
	}
	cacheOps.WithLabelValues(c.name, "set").Inc()
}

// Invalidate removes key. Call it after every write to the authoritative
// record behind key. Failures are logged.
func (c *Cache[T]) Invalidate(ctx context.Context, key string) {
	c.mu.Lock()
	if st, ok := c.loading[key]; ok {
		st.generation++
	}
	c.mu.Unlock()
	c.group.Forget(key)

	if c.delete(ctx, key) {
		cacheOps.WithLabelValues(c.name, "invalidate").Inc()
	}
}

func (c *Cache[T]) delete(ctx context.Context, key string) bool {
	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.backend.Delete(opCtx, c.prefix+key); err != nil {
		c.recordError(ctx, "delete", key, err)
		return false
	}
	return true
}

// beginLoad registers a load of key and returns the generation it must still
// see before its result may be cached.
func (c *Cache[T]) beginLoad(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.loading[key]
	if !ok {
		st = &loadState{}
		c.loading[key] = st
	}
	st.loads++
	return st.generation
}

// current reports whether key has not been invalidated since gen.
func (c *Cache[T]) current(key string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading[key].generation == gen
}

// endLoad unregisters a load of key and reports whether key was invalidated
// while it ran.
func (c *Cache[T]) endLoad(key string, gen uint64) (stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.loading[key]
	stale = st.generation != gen
	st.loads--
	if st.loads == 0 {
		delete(c.loading, key)
	}
	return stale
}

// fill loads key and writes the result back unless key was invalidated in
// the meantime. An invalidation that lands while the write is in flight is
// caught afterwards and the written entry is dropped again.
func (c *Cache[T]) fill(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	gen := c.beginLoad(key)
	wrote := false
	defer func() {
		if c.endLoad(key, gen) && wrote {
			c.delete(ctx, key)
		}
	}()

	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if c.current(key, gen) {
		c.Set(ctx, key, v)
		wrote = true
	}
	return v, nil
}

// GetOrLoad returns the cached value for key or, on a miss, calls load and
// caches its result. Concurrent misses for one key share a single load.
// Errors from load are returned unchanged and nothing is cached.
//
// The shared load keeps the first caller's context values but not its
// cancellation, and is bounded by the load timeout. A caller whose context
// ends stops waiting without failing the others.
func (c *Cache[T]) GetOrLoad(ctx context.Context, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(loadCtx, c.loadTimeout)
		defer cancel()
		return c.fill(ctx, key, load)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Stats reports counters and probes the backend.
func (c *Cache[T]) Stats(ctx context.Context) Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	return Stats{
		Name:           c.name,
		Backend:        c.backend.Name(),
		BackendHealthy: c.backend.Ping(opCtx) == nil,
		Hits:           hits,
		Misses:         misses,
		Errors:         c.errs.Load(),
		HitRate:        rate,
		TTLSeconds:     c.ttl.Seconds(),
	}
}

// Ping checks the backend. It is meant for non-critical health checks.
func (c *Cache[T]) Ping(ctx context.Context) error {
	if err := c.backend.Ping(ctx); err != nil {
		return fmt.Errorf("%s cache backend: %w", c.backend.Name(), err)
	}
	return nil
}

func (c *Cache[T]) recordError(ctx context.Context, op, key string, err error) {
	c.errs.Add(1)
	cacheOps.WithLabelValues(c.name, "error").Inc()
	c.logger.WarnContext(ctx, "cache operation failed",
		slog.String("op", op),
		slog.String("key", c.prefix+key),
		slog.String("error", err.Error()),
	)
}
