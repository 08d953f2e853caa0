package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type quote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func newTestRedis(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheFromClient(client)
	t.Cleanup(func() { c.Close() })
	return c
}

func testBackends(t *testing.T, fn func(t *testing.T, c Cacher)) {
	t.Run("redis", func(t *testing.T) {
		fn(t, newTestRedis(t))
	})
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryCache())
	})
}

func TestGetSet(t *testing.T) {
	testBackends(t, func(t *testing.T, c Cacher) {
		ctx := context.Background()

		want := quote{Symbol: "AAPL", Price: 231.5}
		if err := c.Set(ctx, "quote:AAPL", want, time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}

		var got quote
		if err := c.Get(ctx, "quote:AAPL", &got); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})
}

func TestGetMiss(t *testing.T) {
	testBackends(t, func(t *testing.T, c Cacher) {
		var got quote
		if err := c.Get(context.Background(), "quote:missing", &got); err != ErrCacheMiss {
			t.Errorf("expected ErrCacheMiss, got %v", err)
		}
	})
}

func TestDeleteAndExists(t *testing.T) {
	testBackends(t, func(t *testing.T, c Cacher) {
		ctx := context.Background()

		if err := c.Set(ctx, "k", "v", time.Minute); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		ok, err := c.Exists(ctx, "k")
		if err != nil || !ok {
			t.Fatalf("expected key to exist, ok=%v err=%v", ok, err)
		}

		if err := c.Delete(ctx, "k"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		ok, err = c.Exists(ctx, "k")
		if err != nil || ok {
			t.Errorf("expected key to be gone, ok=%v err=%v", ok, err)
		}
	})
}

func TestAcquireLock(t *testing.T) {
	testBackends(t, func(t *testing.T, c Cacher) {
		ctx := context.Background()

		acquired, err := c.AcquireLock(ctx, "token_refresh", 30*time.Second)
		if err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}
		if !acquired {
			t.Fatal("expected to acquire lock")
		}

		again, err := c.AcquireLock(ctx, "token_refresh", 30*time.Second)
		if err != nil {
			t.Fatalf("second AcquireLock failed: %v", err)
		}
		if again {
			t.Error("expected second acquire to fail while lock held")
		}

		if err := c.ReleaseLock(ctx, "token_refresh"); err != nil {
			t.Fatalf("ReleaseLock failed: %v", err)
		}

		acquired, err = c.AcquireLock(ctx, "token_refresh", 30*time.Second)
		if err != nil || !acquired {
			t.Errorf("expected to reacquire after release, acquired=%v err=%v", acquired, err)
		}
	})
}

func TestCheckRateLimit(t *testing.T) {
	testBackends(t, func(t *testing.T, c Cacher) {
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			allowed, err := c.CheckRateLimit(ctx, "rl:1.2.3.4", 5, time.Minute)
			if err != nil {
				t.Fatalf("CheckRateLimit failed: %v", err)
			}
			if !allowed {
				t.Fatalf("request %d should be allowed", i+1)
			}
		}

		allowed, err := c.CheckRateLimit(ctx, "rl:1.2.3.4", 5, time.Minute)
		if err != nil {
			t.Fatalf("CheckRateLimit failed: %v", err)
		}
		if allowed {
			t.Error("sixth request should be rejected")
		}

		// another key has its own window
		allowed, err = c.CheckRateLimit(ctx, "rl:5.6.7.8", 5, time.Minute)
		if err != nil || !allowed {
			t.Errorf("other key should be allowed, allowed=%v err=%v", allowed, err)
		}
	})
}

func TestIncr(t *testing.T) {
	testBackends(t, func(t *testing.T, c Cacher) {
		ctx := context.Background()

		n, err := c.Incr(ctx, "counter")
		if err != nil || n != 1 {
			t.Fatalf("first Incr = %d, %v", n, err)
		}
		n, err = c.Incr(ctx, "counter")
		if err != nil || n != 2 {
			t.Fatalf("second Incr = %d, %v", n, err)
		}
	})
}

func TestTTLExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheFromClient(client)
	defer c.Close()

	ctx := context.Background()
	if err := c.Set(ctx, "otp:a@b.c", "123456", 10*time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	ttl, err := c.TTL(ctx, "otp:a@b.c")
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > 10*time.Minute {
		t.Errorf("unexpected ttl %v", ttl)
	}

	mr.FastForward(11 * time.Minute)

	var got string
	if err := c.Get(ctx, "otp:a@b.c", &got); err != ErrCacheMiss {
		t.Errorf("expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestLockExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := NewRedisCacheFromClient(client)
	defer c.Close()

	ctx := context.Background()
	acquired, err := c.AcquireLock(ctx, "stale", 30*time.Second)
	if err != nil || !acquired {
		t.Fatalf("AcquireLock failed: acquired=%v err=%v", acquired, err)
	}

	mr.FastForward(31 * time.Second)

	acquired, err = c.AcquireLock(ctx, "stale", 30*time.Second)
	if err != nil || !acquired {
		t.Errorf("expected lock to expire, acquired=%v err=%v", acquired, err)
	}
}
