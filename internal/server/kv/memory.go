package kv

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore implements Store in-process with ttlcache. It only correlates
// connections served by the same process and is meant for single-instance
// deployments and tests.
type MemoryStore struct {
	cache      *ttlcache.Cache[string, string]
	defaultTTL time.Duration
}

// NewMemoryStore starts a store whose expired entries are swept in the
// background until Close is called.
func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	cache := ttlcache.New[string, string](
		// A read must not extend an entry's life; expiry is fixed at write.
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()

	return &MemoryStore{cache: cache, defaultTTL: defaultTTL}
}

func (s *MemoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	expiration := effectiveTTL(ttl, s.defaultTTL)
	if expiration == NoExpiry {
		expiration = ttlcache.NoTTL
	}
	s.cache.Set(key, value, expiration)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	item := s.cache.Get(key)
	if item == nil {
		return "", false, nil
	}
	return item.Value(), true, nil
}

func (s *MemoryStore) MGet(ctx context.Context, keys []string) ([]Value, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	out := make([]Value, len(keys))
	for i, key := range keys {
		v, ok, _ := s.Get(ctx, key)
		out[i] = Value{String: v, Found: ok}
	}
	return out, nil
}

func (s *MemoryStore) Del(_ context.Context, key string) (int64, error) {
	if !s.cache.Has(key) {
		return 0, nil
	}
	s.cache.Delete(key)
	return 1, nil
}

func (s *MemoryStore) Close() error {
	s.cache.Stop()
	return nil
}
