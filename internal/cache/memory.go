package cache

import (
	"context"
	"sync"
	"time"
)

// item represents a cached string set with expiration
type item struct {
	names      []string
	expiration int64 // Unix timestamp in nanoseconds, 0 means no expiry
}

// Memory implements the Cache interface for in-memory caching
type Memory struct {
	config    Config
	items     map[string]item
	mu        sync.RWMutex
	connected bool
	janitor   *time.Ticker
	stopChan  chan bool
}

// NewMemory creates a new in-memory cache
func NewMemory(config Config) *Memory {
	return &Memory{
		config:    config,
		items:     make(map[string]item),
		connected: false,
	}
}

// Connect initializes the memory cache and starts the janitor
func (m *Memory) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return nil
	}

	// Start the janitor to clean expired items
	m.janitor = time.NewTicker(time.Minute)
	m.stopChan = make(chan bool)

	go func() {
		for {
			select {
			case <-m.janitor.C:
				m.deleteExpired()
			case <-m.stopChan:
				m.janitor.Stop()
				return
			}
		}
	}()

	m.connected = true
	return nil
}

// Close stops the janitor and clears the cache
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.stopChan <- true
	close(m.stopChan)

	m.items = make(map[string]item)
	m.connected = false
	return nil
}

// IsConnected returns true if the cache is connected
func (m *Memory) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Name returns the name of this cache instance
func (m *Memory) Name() string {
	return m.config.Name
}

// Type returns the type of this cache
func (m *Memory) Type() string {
	return "memory"
}

// GetNames retrieves a string set from the cache
func (m *Memory) GetNames(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.connected {
		return nil, ErrNotConnected
	}

	it, found := m.items[key]
	if !found {
		return nil, ErrNotFound
	}

	if it.expiration > 0 && time.Now().UnixNano() > it.expiration {
		return nil, ErrNotFound
	}

	names := make([]string, len(it.names))
	copy(names, it.names)
	return names, nil
}

// SetNames stores a string set in the cache
func (m *Memory) SetNames(_ context.Context, key string, names []string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}

	var exp int64
	if expiration > 0 {
		exp = time.Now().Add(expiration).UnixNano()
	}

	stored := make([]string, len(names))
	copy(stored, names)

	m.items[key] = item{names: stored, expiration: exp}
	return nil
}

// Delete removes a key from the cache
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}

	if _, found := m.items[key]; !found {
		return ErrNotFound
	}

	delete(m.items, key)
	return nil
}

// deleteExpired removes all expired items
func (m *Memory) deleteExpired() {
	now := time.Now().UnixNano()

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, it := range m.items {
		if it.expiration > 0 && now > it.expiration {
			delete(m.items, key)
		}
	}
}
