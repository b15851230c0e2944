package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Get non-existent key", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()

		count, resetTime, exists, err := store.Get(ctx, "non-existent")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if exists {
			t.Error("expected key to not exist")
		}
		if count != 0 {
			t.Errorf("expected count 0, got %d", count)
		}
		if !resetTime.IsZero() {
			t.Error("expected zero time")
		}
	})

	t.Run("Set and Get", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()

		resetAt := time.Now().Add(time.Minute)
		if err := store.Set(ctx, "k", 5, resetAt); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		count, resetTime, exists, _ := store.Get(ctx, "k")
		if !exists {
			t.Fatal("expected key to exist")
		}
		if count != 5 {
			t.Errorf("expected count 5, got %d", count)
		}
		if !resetTime.Equal(resetAt) {
			t.Errorf("expected reset %v, got %v", resetAt, resetTime)
		}
	})

	t.Run("Increment opens and extends a window", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()

		resetAt := time.Now().Add(time.Minute)
		for want := 1; want <= 3; want++ {
			got, err := store.Increment(ctx, "k", resetAt)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != want {
				t.Errorf("expected count %d, got %d", want, got)
			}
		}
	})

	t.Run("expired window starts over", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()

		now := time.Now()
		store.now = func() time.Time { return now }

		_ = store.Set(ctx, "k", 7, now.Add(time.Second))
		now = now.Add(2 * time.Second)

		if _, _, exists, _ := store.Get(ctx, "k"); exists {
			t.Error("expected expired key to be hidden")
		}

		got, _ := store.Increment(ctx, "k", now.Add(time.Minute))
		if got != 1 {
			t.Errorf("expected fresh count 1, got %d", got)
		}
	})

	t.Run("Reset", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()

		_, _ = store.Increment(ctx, "k", time.Now().Add(time.Minute))
		_ = store.Reset(ctx, "k")

		if _, _, exists, _ := store.Get(ctx, "k"); exists {
			t.Error("expected key to be removed")
		}
	})

	t.Run("sweep drops expired entries", func(t *testing.T) {
		store := NewMemoryStore()
		defer store.Close()

		now := time.Now()
		store.now = func() time.Time { return now }

		_ = store.Set(ctx, "old", 1, now.Add(-time.Second))
		_ = store.Set(ctx, "live", 1, now.Add(time.Minute))
		store.sweep()

		if _, ok := store.data["old"]; ok {
			t.Error("expected expired entry to be swept")
		}
		if _, ok := store.data["live"]; !ok {
			t.Error("expected live entry to survive")
		}
	})

	t.Run("Close is idempotent", func(t *testing.T) {
		store := NewMemoryStore()
		if err := store.Close(); err != nil {
			t.Fatal(err)
		}
		if err := store.Close(); err != nil {
			t.Fatal(err)
		}
	})
}

// Runs against a real server when ROLLCALL_TEST_REDIS_ADDR is set.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("ROLLCALL_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("ROLLCALL_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}

	store := NewRedisStore(client)
	key := "rollcall_test:" + t.Name()
	defer store.Reset(ctx, key)

	if _, _, exists, err := store.Get(ctx, key); err != nil || exists {
		t.Fatalf("expected missing key, got exists=%v err=%v", exists, err)
	}

	resetAt := time.Now().Add(time.Minute)
	for want := 1; want <= 2; want++ {
		got, err := store.Increment(ctx, key, resetAt)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected count %d, got %d", want, got)
		}
	}

	count, resetTime, exists, err := store.Get(ctx, key)
	if err != nil || !exists {
		t.Fatalf("expected key to exist, err=%v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
	if resetTime.After(resetAt.Add(time.Second)) {
		t.Errorf("reset time %v beyond window %v", resetTime, resetAt)
	}

	if err := store.Reset(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, _, exists, _ := store.Get(ctx, key); exists {
		t.Error("expected key to be removed")
	}

	// A counter stranded without an expiry gets its window back on the next hit.
	if err := client.Set(ctx, key, 7, 0).Err(); err != nil {
		t.Fatal(err)
	}
	got, err := store.Increment(ctx, key, resetAt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 8 {
		t.Errorf("expected count 8, got %d", got)
	}
	ttl, err := client.PTTL(ctx, key).Result()
	if err != nil {
		t.Fatal(err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("expected ttl within the window, got %v", ttl)
	}
	if _, _, exists, _ := store.Get(ctx, key); !exists {
		t.Error("expected repaired key to exist")
	}
}
