package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/JunyongPark97/SIIOT-chat-server/internal/config"
)

// RedisStore keeps per-user connection counts in Redis.
//
// Key pattern:
//
//	{prefix}:user:{user_id}   STRING<count>   - open connections, TTL-guarded
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis-backed presence store.
func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: cfg.PresencePrefix,
	}, nil
}

func (s *RedisStore) userKey(userID string) string {
	return fmt.Sprintf("%s:user:%s", s.prefix, userID)
}

// Increment adds one connection for the user and returns the new count.
func (s *RedisStore) Increment(ctx context.Context, userID string, ttl time.Duration) (int64, error) {
	key := s.userKey(userID)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to increment presence: %w", err)
	}

	return incr.Val(), nil
}

// Decrement removes one connection for the user. The key is deleted when
// the count reaches zero so stale users never linger.
func (s *RedisStore) Decrement(ctx context.Context, userID string) (int64, error) {
	key := s.userKey(userID)

	n, err := s.client.Decr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to decrement presence: %w", err)
	}

	if n <= 0 {
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return 0, fmt.Errorf("failed to clear presence key: %w", err)
		}
		return 0, nil
	}

	return n, nil
}

// Count returns the user's current connection count.
func (s *RedisStore) Count(ctx context.Context, userID string) (int64, error) {
	n, err := s.client.Get(ctx, s.userKey(userID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read presence: %w", err)
	}
	return n, nil
}

// Refresh extends the TTL on the user's count entry.
func (s *RedisStore) Refresh(ctx context.Context, userID string, ttl time.Duration) error {
	return s.client.Expire(ctx, s.userKey(userID), ttl).Err()
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
