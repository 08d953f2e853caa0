package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key does not exist.
var ErrCacheMiss = errors.New("cache: key not found")

// Cacher defines the operations the application needs from its cache.
// Values are JSON-serialized; locks are SetNX-based.
type Cacher interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Incr(ctx context.Context, key string) (int64, error)

	// AcquireLock attempts to take a named lock for the given duration.
	// It returns false without error when another holder owns the lock.
	AcquireLock(ctx context.Context, name string, expiration time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, name string) error

	// CheckRateLimit records an event under key and reports whether it is
	// within limit events per window (sliding window).
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)

	HealthCheck(ctx context.Context) error
	Close() error
}

// Config selects and configures the cache backend.
type Config struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewCacher creates a Redis-backed cache when enabled, otherwise an
// in-memory one.
func NewCacher(cfg *Config) (Cacher, error) {
	if cfg.Enabled {
		return NewRedisCache(cfg)
	}
	return NewMemoryCache(), nil
}
