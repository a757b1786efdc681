package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisKey returns the Redis key holding a user record.
func redisKey(id string) string {
	return "user:" + id
}

// RedisStore persists users in Redis as one JSON value per user.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a RedisStore on top of client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Add writes the user with SETNX so an existing id is never overwritten.
func (s *RedisStore) Add(ctx context.Context, u *User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("redis: marshal user: %w", err)
	}
	ok, err := s.client.SetNX(ctx, redisKey(u.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis: add user: %w", err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*User, error) {
	val, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get user: %w", err)
	}

	var u User
	if err := json.Unmarshal(val, &u); err != nil {
		return nil, fmt.Errorf("redis: unmarshal user: %w", err)
	}
	return &u, nil
}
