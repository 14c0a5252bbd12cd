package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis implements the Cache interface for Redis. String sets are stored
// as JSON arrays so the same keys are readable across nodes.
type Redis struct {
	config    Config
	client    *redis.Client
	connected bool
}

// NewRedis creates a new Redis cache
func NewRedis(config Config) *Redis {
	if config.Port == 0 {
		config.Port = 6379 // Default Redis port
	}

	return &Redis{
		config:    config,
		connected: false,
	}
}

// Connect establishes a connection to Redis
func (r *Redis) Connect() error {
	if r.connected {
		return nil
	}

	r.client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", r.config.Host, r.config.Port),
		Password: r.config.Password,
		DB:       r.config.Database,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r.connected = true
	return nil
}

// Close closes the connection to Redis
func (r *Redis) Close() error {
	if !r.connected {
		return nil
	}

	err := r.client.Close()
	if err != nil {
		return err
	}

	r.connected = false
	return nil
}

// IsConnected returns true if connected to Redis
func (r *Redis) IsConnected() bool {
	return r.connected
}

// Name returns the name of this cache instance
func (r *Redis) Name() string {
	return r.config.Name
}

// Type returns the type of this cache
func (r *Redis) Type() string {
	return "redis"
}

// GetNames retrieves a string set from Redis
func (r *Redis) GetNames(ctx context.Context, key string) ([]string, error) {
	if !r.connected {
		return nil, ErrNotConnected
	}

	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var names []string
	if err := json.Unmarshal([]byte(val), &names); err != nil {
		return nil, fmt.Errorf("failed to decode cached value for %s: %w", key, err)
	}

	return names, nil
}

// SetNames stores a string set in Redis
func (r *Redis) SetNames(ctx context.Context, key string, names []string, expiration time.Duration) error {
	if !r.connected {
		return ErrNotConnected
	}

	data, err := json.Marshal(names)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}

	return r.client.Set(ctx, key, data, expiration).Err()
}

// Delete removes a key from Redis
func (r *Redis) Delete(ctx context.Context, key string) error {
	if !r.connected {
		return ErrNotConnected
	}

	result, err := r.client.Del(ctx, key).Result()
	if err != nil {
		return err
	}

	if result == 0 {
		return ErrNotFound
	}

	return nil
}
