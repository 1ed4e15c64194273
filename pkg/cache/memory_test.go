package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type payload struct {
	Ticker string `json:"ticker"`
	Price  string `json:"price"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	in := []payload{{Ticker: "AAPL", Price: "190.5"}}
	if err := mc.Set(ctx, "history", in, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	var out []payload
	if err := mc.Get(ctx, "history", &out); err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(out) != 1 || out[0] != in[0] {
		t.Fatalf("got %+v", out)
	}

	var s string
	_ = mc.Set(ctx, "raw", "hello", 0)
	if err := mc.Get(ctx, "raw", &s); err != nil || s != "hello" {
		t.Fatalf("string get: %q %v", s, err)
	}

	if err := mc.Delete(ctx, "history"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mc.Get(ctx, "history", &out); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
}

func TestMemoryCacheExpiryAndEviction(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(time.Hour))
	defer mc.Close()

	_ = mc.Set(ctx, "short", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if ok, _ := mc.Exists(ctx, "short"); ok {
		t.Fatalf("expired key reported as existing")
	}

	_ = mc.Set(ctx, "a", 1, 0)
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "b", 2, 0)
	time.Sleep(time.Millisecond)
	var v int
	_ = mc.Get(ctx, "a", &v) // a becomes most recently used
	time.Sleep(time.Millisecond)
	_ = mc.Set(ctx, "c", 3, 0)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Fatalf("least recently used key should be evicted")
	}
	if ok, _ := mc.Exists(ctx, "a", "c"); !ok {
		t.Fatalf("expected a and c to remain")
	}
	if err := mc.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
