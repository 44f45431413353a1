package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
)

// DefaultRunLockKey is the Redis key guarding catalog sync runs
const DefaultRunLockKey = "kiosk:catalog:sync:lock"

// InMemoryRunLock serializes sync runs within a single process
type InMemoryRunLock struct {
	mu sync.Mutex
}

// NewInMemoryRunLock creates a new in-process run lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{}
}

// TryAcquire takes the lock without waiting
func (l *InMemoryRunLock) TryAcquire(ctx context.Context) (func(), error) {
	if !l.mu.TryLock() {
		return nil, catalog.ErrSyncInProgress
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// releaseScript deletes the lock only when it still holds our token, so an
// expired lock taken over by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock serializes sync runs across instances with SET NX and a TTL
type RedisRunLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisRunLock creates a Redis-backed run lock. The TTL bounds how long a
// crashed holder can block other runs.
func NewRedisRunLock(client *redis.Client, key string, ttl time.Duration) *RedisRunLock {
	if key == "" {
		key = DefaultRunLockKey
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisRunLock{client: client, key: key, ttl: ttl}
}

// TryAcquire takes the lock without waiting
func (l *RedisRunLock) TryAcquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	if !ok {
		return nil, catalog.ErrSyncInProgress
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = releaseScript.Run(ctx, l.client, []string{l.key}, token).Err()
		})
	}, nil
}

var (
	_ catalog.RunLock = (*InMemoryRunLock)(nil)
	_ catalog.RunLock = (*RedisRunLock)(nil)
)
