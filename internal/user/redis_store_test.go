package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client), mr
}

func TestRedisStoreAddAndGet(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	if err := s.Add(ctx, &User{ID: "u1", TokenHash: []byte("hash"), CreatedAt: now}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !mr.Exists("user:u1") {
		t.Fatal("expected key user:u1 to exist")
	}

	got, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected user")
	}
	if string(got.TokenHash) != "hash" {
		t.Errorf("expected token hash %q, got %q", "hash", got.TokenHash)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("expected CreatedAt %v, got %v", now, got.CreatedAt)
	}
}

func TestRedisStoreGetNotFound(t *testing.T) {
	s, _ := newTestRedisStore(t)

	got, err := s.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestRedisStoreAddDuplicate(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	s.Add(ctx, &User{ID: "u1", TokenHash: []byte("first")})
	if err := s.Add(ctx, &User{ID: "u1", TokenHash: []byte("second")}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}

	got, _ := s.Get(ctx, "u1")
	if string(got.TokenHash) != "first" {
		t.Errorf("duplicate add overwrote the user: %q", got.TokenHash)
	}
}

func TestRedisStoreImplementsInterface(t *testing.T) {
	s, _ := newTestRedisStore(t)
	var _ Store = s
}
