package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session slot in Redis with a TTL matching the slot
// expiry, so an abandoned slot cleans itself up.
type RedisStore struct {
	client *redis.Client
	key    string
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

	return &RedisStore{client: client, key: "session:slot"}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: "session:slot"}
}

func (s *RedisStore) Save(ctx context.Context, slot Slot) error {
	jsonData, err := json.Marshal(slot)
	if err != nil {
		return fmt.Errorf("marshal session slot: %w", err)
	}

	ttl := time.Until(slot.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}

	if err := s.client.Set(ctx, s.key, jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("save session slot: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (Slot, bool, error) {
	jsonData, err := s.client.Get(ctx, s.key).Result()
	if err == redis.Nil {
		return Slot{}, false, nil
	}
	if err != nil {
		return Slot{}, false, fmt.Errorf("load session slot: %w", err)
	}

	var slot Slot
	if err := json.Unmarshal([]byte(jsonData), &slot); err != nil {
		return Slot{}, false, fmt.Errorf("unmarshal session slot: %w", err)
	}
	return slot, true, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear session slot: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
