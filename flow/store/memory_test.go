package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemCache(t *testing.T) {
	ctx := context.Background()

	t.Run("get before set is a miss not an error", func(t *testing.T) {
		cache := NewMemCache[string]()
		v, ok, err := cache.Get(ctx, "missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok || v != "" {
			t.Errorf("expected miss, got (%q, %v)", v, ok)
		}
	})

	t.Run("set then get round-trips", func(t *testing.T) {
		cache := NewMemCache[int]()
		if err := cache.Set(ctx, "answer", 42, 0); err != nil {
			t.Fatal(err)
		}
		v, ok, err := cache.Get(ctx, "answer")
		if err != nil || !ok || v != 42 {
			t.Errorf("expected (42, true), got (%d, %v, %v)", v, ok, err)
		}
	})

	t.Run("set replaces an existing entry", func(t *testing.T) {
		cache := NewMemCache[string]()
		_ = cache.Set(ctx, "k", "old", 0)
		_ = cache.Set(ctx, "k", "new", 0)

		v, _, _ := cache.Get(ctx, "k")
		if v != "new" {
			t.Errorf("expected replacement, got %q", v)
		}
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		cache := NewMemCache[string]()
		_ = cache.Set(ctx, "k", "v", 0)
		time.Sleep(5 * time.Millisecond)
		if _, ok, _ := cache.Get(ctx, "k"); !ok {
			t.Error("expected the entry to survive without a ttl")
		}
	})

	t.Run("expired entries miss and are collected", func(t *testing.T) {
		cache := NewMemCache[string]()
		_ = cache.Set(ctx, "k", "v", time.Millisecond)
		time.Sleep(10 * time.Millisecond)

		if _, ok, _ := cache.Get(ctx, "k"); ok {
			t.Error("expected the expired entry to miss")
		}
		if cache.Len() != 0 {
			t.Error("expected the expired entry collected on read")
		}
	})

	t.Run("struct values round-trip", func(t *testing.T) {
		type report struct {
			Rows  int
			Title string
		}
		cache := NewMemCache[report]()
		_ = cache.Set(ctx, "r", report{Rows: 10, Title: "monthly"}, 0)

		v, ok, _ := cache.Get(ctx, "r")
		if !ok || v.Rows != 10 || v.Title != "monthly" {
			t.Errorf("expected the stored struct back, got %+v", v)
		}
	})

	t.Run("concurrent readers and writers", func(t *testing.T) {
		cache := NewMemCache[int]()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				_ = cache.Set(ctx, "shared", i, 0)
			}(i)
			go func() {
				defer wg.Done()
				_, _, _ = cache.Get(ctx, "shared")
			}()
		}
		wg.Wait()

		if _, ok, _ := cache.Get(ctx, "shared"); !ok {
			t.Error("expected a value after concurrent writes")
		}
	})
}
