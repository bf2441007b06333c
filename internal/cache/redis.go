package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV implements KV backed by Redis.
type RedisKV struct {
	rdb *redis.Client
}

// NewRedisKV creates a RedisKV and pings the server to verify reachability.
func NewRedisKV(ctx context.Context, addr, password string, db int) (*RedisKV, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisKV{rdb: rdb}, nil
}

// Set writes value under key with the given TTL.
func (r *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Get reads the value under key. Returns ErrNotFound for absent or expired keys.
func (r *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Health checks the Redis connection.
func (r *RedisKV) Health(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close shuts down the Redis client.
func (r *RedisKV) Close() error {
	return r.rdb.Close()
}

var _ KV = (*RedisKV)(nil)
