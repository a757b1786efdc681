package estimate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisKey returns the Redis key for a session document.
func redisKey(id string) string {
	return "session:" + id
}

// RedisStore persists each session as a single JSON document.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a RedisStore on top of client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Create(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: marshal session: %w", err)
	}
	ok, err := r.client.SetNX(ctx, redisKey(s.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis: create session: %w", err)
	}
	if !ok {
		return ErrExists
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	val, err := r.client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(val, &s); err != nil {
		return nil, fmt.Errorf("redis: unmarshal session: %w", err)
	}
	if s.Members == nil {
		s.Members = []*Member{}
	}
	if s.Admins == nil {
		s.Admins = []string{}
	}
	return &s, nil
}

// Put overwrites the session only if it still exists, so a write racing a
// delete from another process does not resurrect it.
func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: marshal session: %w", err)
	}
	ok, err := r.client.SetXX(ctx, redisKey(s.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis: put session: %w", err)
	}
	if !ok {
		return fmt.Errorf("redis: put session %s: not found", s.ID)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := r.client.Del(ctx, redisKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("redis: delete session: %w", err)
	}
	return n == 1, nil
}
