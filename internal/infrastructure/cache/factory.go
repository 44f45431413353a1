package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/config"
)

// RunLockFactory creates the catalog sync run lock based on configuration
type RunLockFactory struct {
	syncConfig            config.SyncConfig
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RunLockFactoryOption is a functional option for configuring the factory
type RunLockFactoryOption func(*RunLockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-process lock when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRunLockFactory creates a new factory
func NewRunLockFactory(syncCfg config.SyncConfig, redisCfg config.RedisConfig, opts ...RunLockFactoryOption) *RunLockFactory {
	f := &RunLockFactory{
		syncConfig:            syncCfg,
		redisConfig:           redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create returns the configured lock. With lock_backend=redis it connects to
// Redis and falls back to an in-process lock when allowed.
// WARNING: an in-process lock does not serialize runs across instances.
func (f *RunLockFactory) Create() (catalog.RunLock, error) {
	if f.syncConfig.LockBackend != "redis" {
		f.logger.Info("using in-memory catalog sync lock")
		return NewInMemoryRunLock(), nil
	}

	client, err := NewRedisClient(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis catalog sync lock", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisRunLock(client, DefaultRunLockKey, f.syncConfig.LockTTL), nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for sync lock but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory catalog sync lock. "+
		"Concurrent runs from other instances will not be rejected.",
		zap.Error(err),
	)
	return NewInMemoryRunLock(), nil
}
