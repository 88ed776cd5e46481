// Package kv is the shared, TTL-capable string store that the server uses to
// correlate state across processes: socket bindings, login nonces,
// pagination cursors and cached signed URLs.
package kv

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/keybud/internal/server/config"
)

// DefaultTTL is applied to writes that do not pass an explicit TTL, so an
// abandoned entry always expires eventually.
const DefaultTTL = 300 * time.Second

// NoExpiry marks an entry that lives until it is deleted.
const NoExpiry time.Duration = -1

// Value is one MGet result. Found is false for absent keys.
type Value struct {
	String string
	Found  bool
}

// Store is the key-value registry contract. Every operation is a single-key
// (or single MGET) atomic call; there are no multi-key transactions.
type Store interface {
	// Set writes value under key. ttl == 0 applies the store default,
	// NoExpiry persists the entry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// MGet returns one Value per key, in order.
	MGet(ctx context.Context, keys []string) ([]Value, error)
	// Del removes key and returns how many entries were deleted.
	Del(ctx context.Context, key string) (int64, error)
	// Close releases backend resources.
	Close() error
}

// New builds the backend selected by cfg.KVBackend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.KVBackend {
	case config.KVBackendRedis:
		return NewRedisStore(ctx, RedisOptions{
			Addr:       cfg.RedisAddr,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			DefaultTTL: cfg.KVDefaultTTL,
		})
	case config.KVBackendMemory:
		return NewMemoryStore(cfg.KVDefaultTTL), nil
	default:
		return nil, fmt.Errorf("unknown kv backend %q", cfg.KVBackend)
	}
}

// effectiveTTL resolves the ttl argument of Set against the store default.
func effectiveTTL(ttl, def time.Duration) time.Duration {
	if ttl != 0 {
		return ttl
	}
	if def > 0 {
		return def
	}
	return DefaultTTL
}
