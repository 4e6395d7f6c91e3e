package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	if _, ok := c.Get(ctx, "evolucao"); ok {
		t.Fatal("empty cache should miss")
	}
	if err := c.Set(ctx, "evolucao", []byte(`[1]`), time.Minute); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get(ctx, "evolucao")
	if !ok || string(got) != "[1]" {
		t.Errorf("Get = %q, %v", got, ok)
	}

	_ = c.Delete(ctx, "evolucao")
	if _, ok := c.Get(ctx, "evolucao"); ok {
		t.Error("deleted key should miss")
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)
	_ = c.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get(ctx, "k"); ok {
		t.Error("expired key should miss")
	}
}

func TestNewFallsBackToMemory(t *testing.T) {
	c, usingRedis := New(context.Background(), "", time.Minute)
	if usingRedis {
		t.Error("empty address must not use redis")
	}
	if _, ok := c.(*Memory); !ok {
		t.Errorf("cache = %T, want *Memory", c)
	}

	c, usingRedis = New(context.Background(), "127.0.0.1:1", time.Minute)
	if usingRedis {
		t.Error("unreachable redis should fall back")
	}
	if _, ok := c.(*Memory); !ok {
		t.Errorf("cache = %T, want *Memory", c)
	}
}
