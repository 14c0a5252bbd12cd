package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// Memcached implements the Cache interface for memcached. Values are
// stored as JSON arrays, the same wire format the redis backend uses.
type Memcached struct {
	config    Config
	client    *memcache.Client
	connected bool
}

// NewMemcached creates a new memcached cache
func NewMemcached(config Config) *Memcached {
	if config.Port == 0 {
		config.Port = 11211 // Default memcached port
	}

	return &Memcached{
		config:    config,
		connected: false,
	}
}

// Connect establishes a connection to memcached
func (m *Memcached) Connect() error {
	if m.connected {
		return nil
	}

	m.client = memcache.New(fmt.Sprintf("%s:%d", m.config.Host, m.config.Port))
	m.client.Timeout = 5 * time.Second

	if err := m.client.Ping(); err != nil {
		return fmt.Errorf("failed to connect to memcached: %w", err)
	}

	m.connected = true
	return nil
}

// Close closes the connection to memcached
func (m *Memcached) Close() error {
	if !m.connected {
		return nil
	}

	// gomemcache manages its connection pool internally
	m.connected = false
	return nil
}

// IsConnected returns true if connected to memcached
func (m *Memcached) IsConnected() bool {
	return m.connected
}

// Name returns the name of this cache instance
func (m *Memcached) Name() string {
	return m.config.Name
}

// Type returns the type of this cache
func (m *Memcached) Type() string {
	return "memcached"
}

// GetNames retrieves a string set from memcached
func (m *Memcached) GetNames(_ context.Context, key string) ([]string, error) {
	if !m.connected {
		return nil, ErrNotConnected
	}

	it, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal(it.Value, &names); err != nil {
		return nil, fmt.Errorf("failed to decode cached value for %s: %w", key, err)
	}

	return names, nil
}

// SetNames stores a string set in memcached
func (m *Memcached) SetNames(_ context.Context, key string, names []string, expiration time.Duration) error {
	if !m.connected {
		return ErrNotConnected
	}

	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}

	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      data,
		Expiration: int32(expiration.Seconds()),
	})
}

// Delete removes a key from memcached
func (m *Memcached) Delete(_ context.Context, key string) error {
	if !m.connected {
		return ErrNotConnected
	}

	err := m.client.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return ErrNotFound
	}

	return err
}
