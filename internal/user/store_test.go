package user

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreAddAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	u := &User{ID: "u1", TokenHash: []byte("hash"), CreatedAt: time.Now()}
	if err := store.Add(ctx, u); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := store.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected to find user by id")
	}
	if string(got.TokenHash) != "hash" {
		t.Errorf("expected token hash %q, got %q", "hash", got.TokenHash)
	}
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	store := NewMemoryStore()

	got, err := store.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown id, got %+v", got)
	}
}

func TestMemoryStoreAddDuplicate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Add(ctx, &User{ID: "u1"})
	if err := store.Add(ctx, &User{ID: "u1"}); !errors.Is(err, ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if store.Count() != 1 {
		t.Errorf("expected 1 user, got %d", store.Count())
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	store.Add(ctx, &User{ID: "u1", TokenHash: []byte("a")})
	got, _ := store.Get(ctx, "u1")
	got.ID = "changed"

	again, _ := store.Get(ctx, "u1")
	if again == nil || again.ID != "u1" {
		t.Errorf("stored user was modified through a returned copy: %+v", again)
	}
}
