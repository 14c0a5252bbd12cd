// Package cache provides the shared cache used for the tag-name catalog.
// The value model is deliberately narrow: string sets keyed by name. Memory
// is the default backend; redis and memcached are available for multi-node
// deployments where every node should see the same catalog load.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Common errors
var (
	ErrNotFound     = errors.New("key not found in cache")
	ErrNotConnected = errors.New("not connected to cache")
)

// Cache is the interface all cache backends satisfy.
type Cache interface {
	// Connect establishes a connection to the cache backend.
	Connect() error

	// Close closes the connection.
	Close() error

	// IsConnected returns true if the cache is usable.
	IsConnected() bool

	// Name returns the name of this cache instance.
	Name() string

	// Type returns the backend type ("memory", "redis", "memcached").
	Type() string

	// GetNames retrieves a string set, returning ErrNotFound on a miss.
	GetNames(ctx context.Context, key string) ([]string, error)

	// SetNames stores a string set with an optional expiration.
	SetNames(ctx context.Context, key string, names []string, expiration time.Duration) error

	// Delete removes a key.
	Delete(ctx context.Context, key string) error
}

// Config represents the configuration for a cache backend.
type Config struct {
	Enabled  bool   `toml:"enabled"`
	Type     string `toml:"type"`     // memory, redis, memcached
	Name     string `toml:"name"`     // instance name
	Host     string `toml:"host"`     // hostname or IP address
	Port     int    `toml:"port"`     // port number
	Password string `toml:"password"` // for redis auth
	Database int    `toml:"database"` // redis database number
}

// Factory creates a cache backend from configuration.
func Factory(config Config) (Cache, error) {
	switch config.Type {
	case "", "memory":
		return NewMemory(config), nil
	case "redis":
		return NewRedis(config), nil
	case "memcached":
		return NewMemcached(config), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}
