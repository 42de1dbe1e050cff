package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"yoketrip/internal/config"
	"yoketrip/internal/domain"
	"yoketrip/internal/models"

	"github.com/redis/go-redis/v9"
)

var errNilClient = errors.New("redis client is nil")

// NewRedisClient builds a client from the redis config section.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisReviewCache shares review lookups between processes of one user.
type RedisReviewCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisReviewCache(client *redis.Client, ttl time.Duration) *RedisReviewCache {
	return &RedisReviewCache{client: client, ttl: ttl}
}

func reviewKey(key models.ReviewKey) string {
	return "review:" + key.String()
}

func (r *RedisReviewCache) Get(ctx context.Context, key models.ReviewKey) (*domain.CachedReview, error) {
	if r.client == nil {
		return nil, errNilClient
	}
	val, err := r.client.Get(ctx, reviewKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review from redis: %w", err)
	}

	var entry domain.CachedReview
	if err := json.Unmarshal(val, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal review: %w", err)
	}
	return &entry, nil
}

func (r *RedisReviewCache) Set(ctx context.Context, key models.ReviewKey, value *domain.CachedReview) error {
	if r.client == nil {
		return errNilClient
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal review: %w", err)
	}
	if err := r.client.Set(ctx, reviewKey(key), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set review in redis: %w", err)
	}
	return nil
}

func (r *RedisReviewCache) Delete(ctx context.Context, key models.ReviewKey) error {
	if r.client == nil {
		return errNilClient
	}
	if err := r.client.Del(ctx, reviewKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete review from redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return errNilClient
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
