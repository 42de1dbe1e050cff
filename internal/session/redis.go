package session

import (
	"context"
	"errors"
	"fmt"

	"yoketrip/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares the token between processes. Writers publish on
// ChangeChannel so watchers re-read it, like the browser storage event.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: models.AuthTokenKey}
}

func (r *RedisStore) ChangeChannel() string {
	return r.key + ":changed"
}

func (r *RedisStore) Token(ctx context.Context) (string, error) {
	if r.client == nil {
		return "", fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get token from redis: %w", err)
	}
	return val, nil
}

func (r *RedisStore) SetToken(ctx context.Context, token string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Set(ctx, r.key, token, 0).Err(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}
	return r.notify(ctx)
}

func (r *RedisStore) ClearToken(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return r.notify(ctx)
}

func (r *RedisStore) Watch(ctx context.Context, fn func(token string)) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	sub := r.client.Subscribe(ctx, r.ChangeChannel())
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", r.ChangeChannel(), err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-ch:
			if !ok {
				return nil
			}
			token, err := r.Token(ctx)
			if err != nil {
				continue
			}
			fn(token)
		}
	}
}

func (r *RedisStore) notify(ctx context.Context) error {
	if err := r.client.Publish(ctx, r.ChangeChannel(), "changed").Err(); err != nil {
		return fmt.Errorf("publish token change: %w", err)
	}
	return nil
}
