// Package cache provides a persistent, strictly additive key/value map used to
// memoize resolution decisions and fetched page text across runs.
package cache

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Backend persists a flat mapping of key to serialized value.
type Backend interface {
	// Load returns the full persisted mapping. A missing store yields an
	// empty mapping and no error.
	Load(ctx context.Context) (map[string][]byte, error)
	// Save writes the full mapping.
	Save(ctx context.Context, entries map[string][]byte) error
	// Describe names the store for log lines.
	Describe() string
}

// Flusher is implemented by every Cache regardless of its value type.
type Flusher interface {
	Name() string
	Flush(ctx context.Context) error
}

// Cache is a typed in-memory map fronting a Backend. It is safe for
// concurrent use. There is no eviction and no TTL.
type Cache[V any] struct {
	name    string
	backend Backend

	mu      sync.RWMutex
	entries map[string]V
	dirty   bool

	flushMu sync.Mutex
}

// Open loads the backend into a new Cache. An unreadable or corrupt store is
// logged and treated as empty; Open never fails.
func Open[V any](ctx context.Context, name string, backend Backend) *Cache[V] {
	c := &Cache[V]{
		name:    name,
		backend: backend,
		entries: make(map[string]V),
	}
	if backend == nil {
		return c
	}

	raw, err := backend.Load(ctx)
	if err != nil {
		zap.L().Warn("cache: load failed, starting empty",
			zap.String("cache", name),
			zap.String("store", backend.Describe()),
			zap.Error(err),
		)
		return c
	}

	for k, v := range raw {
		var val V
		if err := json.Unmarshal(v, &val); err != nil {
			zap.L().Warn("cache: skipping undecodable entry",
				zap.String("cache", name),
				zap.String("key", k),
				zap.Error(err),
			)
			continue
		}
		c.entries[k] = val
	}

	zap.L().Info("cache: loaded",
		zap.String("cache", name),
		zap.String("store", backend.Describe()),
		zap.Int("entries", len(c.entries)),
	)
	return c
}

// Name returns the cache name.
func (c *Cache[V]) Name() string { return c.name }

// Get returns the value stored under key.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Put stores value under key, replacing any previous value.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	c.dirty = true
}

// Len returns the number of entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the cached keys in sorted order.
func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Flush writes the full mapping to the backend if anything changed since the
// last successful flush. On failure the in-memory mapping is untouched and the
// next flush retries.
func (c *Cache[V]) Flush(ctx context.Context) error {
	if c.backend == nil {
		return nil
	}

	c.flushMu.Lock()
	defer c.flushMu.Unlock()

	c.mu.Lock()
	if !c.dirty {
		c.mu.Unlock()
		return nil
	}
	snapshot := make(map[string][]byte, len(c.entries))
	for k, v := range c.entries {
		b, err := json.Marshal(v)
		if err != nil {
			c.mu.Unlock()
			return eris.Wrapf(err, "cache: marshal %s entry %q", c.name, k)
		}
		snapshot[k] = b
	}
	c.dirty = false
	c.mu.Unlock()

	if err := c.backend.Save(ctx, snapshot); err != nil {
		c.mu.Lock()
		c.dirty = true
		c.mu.Unlock()
		return eris.Wrapf(err, "cache: save %s", c.name)
	}

	zap.L().Debug("cache: flushed",
		zap.String("cache", c.name),
		zap.Int("entries", len(snapshot)),
	)
	return nil
}

// FlushAll flushes every cache, logging failures as warnings. It returns the
// number of caches that failed to flush.
func FlushAll(ctx context.Context, caches ...Flusher) int {
	failed := 0
	for _, c := range caches {
		if c == nil {
			continue
		}
		if err := c.Flush(ctx); err != nil {
			failed++
			zap.L().Warn("cache: flush failed, keeping in-memory state",
				zap.String("cache", c.Name()),
				zap.Error(err),
			)
		}
	}
	return failed
}
