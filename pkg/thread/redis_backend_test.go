package thread

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupMiniredis(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	store := NewRedisStoreFromClient(client, "test:", 0)

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

func TestRedisStoreContract(t *testing.T) {
	store := setupMiniredis(t)
	runStoreContract(t, store)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStoreFromClient(client, "svc:", 0)
	defer func() { _ = store.Close() }()
	ctx := context.Background()

	if err := store.Save(ctx, testCheckpoint("t1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if !mr.Exists("svc:t1") {
		t.Error("checkpoint not stored under prefixed key svc:t1")
	}
}

func TestRedisStoreClosed(t *testing.T) {
	store := setupMiniredis(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	ctx := context.Background()

	if _, err := store.Load(ctx, "t1"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Load() on closed store error = %v, want ErrStoreClosed", err)
	}
}
