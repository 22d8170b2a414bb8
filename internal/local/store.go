// Package local provides the device-local key-value storage mirror. Each
// key's write is independently atomic and there are no transactions across
// keys.
package local

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Logical storage keys. Everything the app persists locally lives under one
// of these.
const (
	KeyPlan              = "treinos:plan"
	KeyActiveTab         = "treinos:active_tab"
	KeyChat              = "treinos:chat_msgs"
	KeyPending           = "treinos:pending"
	KeyCalendar          = "treinos:calendar"
	KeyCalendarViewState = "treinos:calendar_view"
	KeyPinHash           = "treinos:pin_hash"
	KeyPinSalt           = "treinos:pin_salt"
	KeyPinUnlocked       = "treinos:pin_unlocked"
	KeyLastFicha         = "treinos:last_ficha"
)

// Store is the local persistence contract. Callers must treat a failed Set
// as a degradation, not a fatal condition: the in-memory plan stays
// authoritative for the session.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// RedisStore implements Store on Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
