package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coophours/internal/config"
	"coophours/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps sessions in Redis. Entries carry a TTL so abandoned
// sessions eventually disappear on their own; the manager still applies the
// idle-timeout rule on every Authorize.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, token string) (*models.Session, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, models.SessionKeyPrefix+token).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

func (r *RedisStore) Set(ctx context.Context, session *models.Session) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := r.client.Set(ctx, models.SessionKeyPrefix+session.Token, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in redis: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, token string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, models.SessionKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}
