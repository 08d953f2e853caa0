package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"
)

// MemoryCache is an in-process Cacher used when Redis is disabled and as a
// fallback in tests. Entries are lazily expired on access.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	windows map[string][]time.Time
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time // zero means no expiry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		windows: make(map[string][]time.Time),
	}
}

func (m *MemoryCache) get(key string) (memoryEntry, bool) {
	entry, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (m *MemoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.get(key)
	if !ok {
		return ErrCacheMiss
	}
	return json.Unmarshal(entry.data, dest)
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{data: data}
	if expiration > 0 {
		entry.expiresAt = time.Now().Add(expiration)
	}
	m.entries[key] = entry
	return nil
}

func (m *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func (m *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.get(key)
	return ok, nil
}

func (m *MemoryCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.get(key)
	if !ok {
		return -2 * time.Second, nil // mirrors Redis: -2 for missing key
	}
	if entry.expiresAt.IsZero() {
		return -1 * time.Second, nil // -1 for no expiry
	}
	return time.Until(entry.expiresAt), nil
}

func (m *MemoryCache) Incr(ctx context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	if entry, ok := m.get(key); ok {
		parsed, err := strconv.ParseInt(string(entry.data), 10, 64)
		if err != nil {
			return 0, err
		}
		n = parsed
	}
	n++
	expiresAt := time.Time{}
	if entry, ok := m.entries[key]; ok {
		expiresAt = entry.expiresAt
	}
	m.entries[key] = memoryEntry{data: []byte(strconv.FormatInt(n, 10)), expiresAt: expiresAt}
	return n, nil
}

func (m *MemoryCache) AcquireLock(ctx context.Context, name string, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := lockPrefix + name
	if _, held := m.get(key); held {
		return false, nil
	}
	entry := memoryEntry{data: []byte("1")}
	if expiration > 0 {
		entry.expiresAt = time.Now().Add(expiration)
	}
	m.entries[key] = entry
	return true, nil
}

func (m *MemoryCache) ReleaseLock(ctx context.Context, name string) error {
	return m.Delete(ctx, lockPrefix+name)
}

func (m *MemoryCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-window)

	events := m.windows[key]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	if len(kept) >= limit {
		m.windows[key] = kept
		return false, nil
	}

	m.windows[key] = append(kept, now)
	return true, nil
}

func (m *MemoryCache) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MemoryCache) Close() error {
	return nil
}
