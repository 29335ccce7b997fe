// Package cache provides the content-addressed TTL cache shared by all
// pipeline stages. Lookups degrade to a miss on any backend failure; the
// pipeline never stops because the cache is unhealthy.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"
)

// Backend is a cache storage driver. Get returns (nil, nil) for a miss,
// including entries that exist but have expired. Expired rows stay on
// disk until PurgeExpired removes them.
type Backend interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, payload []byte, ttl time.Duration) error
	PurgeExpired(ctx context.Context) (int, error)
	Stats(ctx context.Context) ([]NamespaceStats, error)
	Migrate(ctx context.Context) error
	Close() error
}

// NamespaceStats summarizes one namespace's cache occupancy.
type NamespaceStats struct {
	Namespace string `json:"namespace"`
	Live      int    `json:"live"`
	Expired   int    `json:"expired"`
}

// Cache wraps a Backend with key derivation and per-namespace TTLs.
type Cache struct {
	backend    Backend
	defaultTTL time.Duration
	ttls       map[string]time.Duration
}

// New builds a Cache. Namespaces absent from overrides use defaultTTL.
func New(backend Backend, defaultTTL time.Duration, overrides map[string]time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	ttls := make(map[string]time.Duration, len(overrides))
	for ns, ttl := range overrides {
		if ttl > 0 {
			ttls[ns] = ttl
		}
	}
	return &Cache{backend: backend, defaultTTL: defaultTTL, ttls: ttls}
}

// TTL returns the configured lifetime for a namespace.
func (c *Cache) TTL(namespace string) time.Duration {
	if ttl, ok := c.ttls[namespace]; ok {
		return ttl
	}
	return c.defaultTTL
}

// Get fetches the payload stored for the given parameters. Any failure,
// from key derivation to a backend read error, is reported as a miss.
func (c *Cache) Get(ctx context.Context, namespace string, params map[string]any) ([]byte, bool) {
	key, err := Key(namespace, params)
	if err != nil {
		zap.L().Warn("cache key derivation failed, treating as miss",
			zap.String("namespace", namespace), zap.Error(err))
		return nil, false
	}
	payload, err := c.backend.Get(ctx, namespace, key)
	if err != nil {
		zap.L().Warn("cache read failed, treating as miss",
			zap.String("namespace", namespace), zap.String("key", shortKey(key)), zap.Error(err))
		return nil, false
	}
	if payload == nil {
		return nil, false
	}
	zap.L().Debug("cache hit",
		zap.String("namespace", namespace), zap.String("key", shortKey(key)))
	return payload, true
}

// Put stores a payload under the namespace's TTL, replacing any existing
// entry for the same parameters. Failures are logged and swallowed; a
// failed write just means the next Get is a miss.
func (c *Cache) Put(ctx context.Context, namespace string, params map[string]any, payload []byte) {
	key, err := Key(namespace, params)
	if err != nil {
		zap.L().Warn("cache key derivation failed, skipping write",
			zap.String("namespace", namespace), zap.Error(err))
		return
	}
	if err := c.backend.Put(ctx, namespace, key, payload, c.TTL(namespace)); err != nil {
		zap.L().Warn("cache write failed",
			zap.String("namespace", namespace), zap.String("key", shortKey(key)), zap.Error(err))
	}
}

// PurgeExpired removes every expired entry and returns how many went.
func (c *Cache) PurgeExpired(ctx context.Context) (int, error) {
	return c.backend.PurgeExpired(ctx)
}

// Stats reports per-namespace occupancy.
func (c *Cache) Stats(ctx context.Context) ([]NamespaceStats, error) {
	return c.backend.Stats(ctx)
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}

// GetJSON fetches and decodes a typed payload. Corrupt payloads count as
// misses so a bad write can never wedge a namespace.
func GetJSON[T any](ctx context.Context, c *Cache, namespace string, params map[string]any) (T, bool) {
	var v T
	raw, ok := c.Get(ctx, namespace, params)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		zap.L().Warn("cache payload corrupt, treating as miss",
			zap.String("namespace", namespace), zap.Error(err))
		var zero T
		return zero, false
	}
	return v, true
}

// PutJSON encodes and stores a typed payload.
func PutJSON[T any](ctx context.Context, c *Cache, namespace string, params map[string]any, v T) {
	raw, err := json.Marshal(v)
	if err != nil {
		zap.L().Warn("cache payload encode failed, skipping write",
			zap.String("namespace", namespace), zap.Error(err))
		return
	}
	c.Put(ctx, namespace, params, raw)
}
