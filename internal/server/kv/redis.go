package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures RedisStore.
type RedisOptions struct {
	Addr       string
	Password   string
	DB         int
	DefaultTTL time.Duration
}

// RedisStore implements Store on top of a Redis server so every server
// process sees the same correlation entries.
type RedisStore struct {
	client     *redis.Client
	defaultTTL time.Duration
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}

	return NewRedisStoreFromClient(client, opts.DefaultTTL), nil
}

// NewRedisStoreFromClient wraps an existing client.
func NewRedisStoreFromClient(client *redis.Client, defaultTTL time.Duration) *RedisStore {
	return &RedisStore{client: client, defaultTTL: defaultTTL}
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	expiration := effectiveTTL(ttl, s.defaultTTL)
	if expiration == NoExpiry {
		// go-redis treats 0 as "no expiration".
		expiration = 0
	}
	if err := s.client.Set(ctx, key, value, expiration).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *RedisStore) MGet(ctx context.Context, keys []string) ([]Value, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	raw, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	out := make([]Value, len(raw))
	for i, v := range raw {
		if str, ok := v.(string); ok {
			out[i] = Value{String: str, Found: true}
		}
	}
	return out, nil
}

func (s *RedisStore) Del(ctx context.Context, key string) (int64, error) {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis del %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
