package cache

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/cart"
)

// DefaultCartKeyPrefix namespaces cart session keys in Redis
const DefaultCartKeyPrefix = "kiosk:cart:"

// InMemoryCartStore implements cart.Store with a map
type InMemoryCartStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewInMemoryCartStore creates an empty in-memory cart store
func NewInMemoryCartStore() *InMemoryCartStore {
	return &InMemoryCartStore{values: make(map[string]string)}
}

func (s *InMemoryCartStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *InMemoryCartStore) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *InMemoryCartStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// RedisCartStore implements cart.Store on Redis strings under a session prefix
type RedisCartStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisCartStore creates a store whose keys live under keyPrefix
func NewRedisCartStore(client *redis.Client, keyPrefix string) *RedisCartStore {
	if keyPrefix == "" {
		keyPrefix = DefaultCartKeyPrefix
	}
	return &RedisCartStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisCartStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.keyPrefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cart key %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisCartStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.keyPrefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write cart key %s: %w", key, err)
	}
	return nil
}

func (s *RedisCartStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = s.keyPrefix + k
	}
	if err := s.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("failed to delete cart keys: %w", err)
	}
	return nil
}

var (
	_ cart.Store = (*InMemoryCartStore)(nil)
	_ cart.Store = (*RedisCartStore)(nil)
)
