package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mohammad-safakhou/prospector/config"
	"github.com/mohammad-safakhou/prospector/internal/agent/core"
)

func startRedisCache(t *testing.T, ttl time.Duration) *RedisCache {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()

	redisC, err := tcRedis.RunContainer(ctx, testcontainers.WithWaitStrategy(wait.ForListeningPort("6379/tcp")))
	if err != nil {
		t.Fatalf("redis container: %v", err)
	}
	t.Cleanup(func() { _ = redisC.Terminate(ctx) })

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}

	cache, err := NewRedisCache(config.CacheConfig{
		Backend:   "redis",
		TTL:       ttl,
		RedisAddr: fmt.Sprintf("%s:%s", host, port.Port()),
	})
	if err != nil {
		t.Fatalf("redis cache: %v", err)
	}
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	cache := startRedisCache(t, time.Hour)

	if _, ok, err := cache.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected a clean miss, got ok=%v err=%v", ok, err)
	}
	want := core.Report{Summary: "alice", Contact: &core.ContactInfo{Email: "alice@example.com"}}
	if err := cache.Set(ctx, "alice|", want); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := cache.Get(ctx, "alice|")
	if err != nil || !ok {
		t.Fatalf("expected a hit, got ok=%v err=%v", ok, err)
	}
	if got.Summary != want.Summary || got.Contact == nil || got.Contact.Email != want.Contact.Email {
		t.Fatalf("report did not survive the round trip: %+v", got)
	}

	if err := cache.Delete(ctx, "alice|"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "alice|"); ok {
		t.Fatalf("deleted entry should be gone")
	}
}

func TestRedisCacheReadRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	cache := startRedisCache(t, 2*time.Second)

	if err := cache.Set(ctx, "k", core.Report{Summary: "s"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	// each read lands inside the previous TTL window and renews it,
	// so the entry outlives its original expiry
	for i := 0; i < 3; i++ {
		time.Sleep(1200 * time.Millisecond)
		if _, ok, err := cache.Get(ctx, "k"); err != nil || !ok {
			t.Fatalf("read %d: entry should still be present, ok=%v err=%v", i, ok, err)
		}
	}
	time.Sleep(2500 * time.Millisecond)
	if _, ok, _ := cache.Get(ctx, "k"); ok {
		t.Fatalf("entry should expire once reads stop")
	}
}
