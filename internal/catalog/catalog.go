// Package catalog holds the set of search-parameter keys the service
// accepts. The set lives in a lookup table that changes rarely, so it is
// loaded once per process and memoized. A failed load is not sticky: the
// next caller triggers a fresh attempt.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/busybox42/lettera/internal/cache"
)

const cacheKey = "lettera:valid-tag-names"

// Loader fetches the full set of valid tag names from the backing store.
type Loader func(ctx context.Context) ([]string, error)

// Catalog memoizes the valid tag names for the life of the process.
// Concurrent first callers share a single load via singleflight.
type Catalog struct {
	loader Loader
	cache  cache.Cache // optional shared cache, may be nil
	ttl    time.Duration
	logger *slog.Logger

	group  singleflight.Group
	mu     sync.RWMutex
	names  map[string]struct{}
	loaded bool
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithCache adds a shared cache consulted before the loader and refreshed
// after a successful load. Cache failures degrade to the loader.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cat *Catalog) {
		cat.cache = c
		cat.ttl = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(cat *Catalog) {
		cat.logger = logger
	}
}

// New creates a Catalog backed by the given loader.
func New(loader Loader, opts ...Option) *Catalog {
	cat := &Catalog{
		loader: loader,
		logger: slog.Default().With("component", "catalog"),
	}
	for _, opt := range opts {
		opt(cat)
	}
	return cat
}

// Names returns the set of valid tag names, loading it on first use.
func (c *Catalog) Names(ctx context.Context) (map[string]struct{}, error) {
	c.mu.RLock()
	if c.loaded {
		names := c.names
		c.mu.RUnlock()
		return names, nil
	}
	c.mu.RUnlock()

	// A single load is shared between concurrent first callers. The result
	// map is read-only after publication, so handing it out is safe.
	result, err, _ := c.group.Do(cacheKey, func() (interface{}, error) {
		c.mu.RLock()
		if c.loaded {
			names := c.names
			c.mu.RUnlock()
			return names, nil
		}
		c.mu.RUnlock()

		names, err := c.load(ctx)
		if err != nil {
			return nil, err
		}

		set := make(map[string]struct{}, len(names))
		for _, name := range names {
			set[name] = struct{}{}
		}

		c.mu.Lock()
		c.names = set
		c.loaded = true
		c.mu.Unlock()

		c.logger.Info("loaded tag name catalog", "count", len(set))
		return set, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load tag name catalog: %w", err)
	}

	return result.(map[string]struct{}), nil
}

// Contains reports whether key is a valid tag name.
func (c *Catalog) Contains(ctx context.Context, key string) (bool, error) {
	names, err := c.Names(ctx)
	if err != nil {
		return false, err
	}
	_, ok := names[key]
	return ok, nil
}

// Invalidate drops the memoized set so the next call reloads it. Call this
// after the lookup table changes.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.names = nil
	c.loaded = false
	c.mu.Unlock()

	if c.cache != nil && c.cache.IsConnected() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.cache.Delete(ctx, cacheKey); err != nil && !errors.Is(err, cache.ErrNotFound) {
			c.logger.Warn("failed to invalidate shared cache", "error", err)
		}
	}
}

// load consults the shared cache first, then the loader. A successful
// loader result is written back to the cache on a best effort basis.
func (c *Catalog) load(ctx context.Context) ([]string, error) {
	if c.cache != nil && c.cache.IsConnected() {
		names, err := c.cache.GetNames(ctx, cacheKey)
		if err == nil {
			return names, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			c.logger.Warn("shared cache read failed, falling back to store", "error", err)
		}
	}

	names, err := c.loader(ctx)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && c.cache.IsConnected() {
		if err := c.cache.SetNames(ctx, cacheKey, names, c.ttl); err != nil {
			c.logger.Warn("shared cache write failed", "error", err)
		}
	}

	return names, nil
}
