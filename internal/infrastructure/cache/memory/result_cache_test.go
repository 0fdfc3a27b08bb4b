package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bugtracker/bugtracker/internal/core/ports"
)

func TestResultCache_SetGetDelete(t *testing.T) {
	c := NewResultCache(Config{})
	ctx := context.Background()

	if _, err := c.Get(ctx, "bug:1"); !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("expected miss on empty cache, got %v", err)
	}

	if err := c.Set(ctx, "bug:1", []byte(`{"id":"1"}`), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := c.Get(ctx, "bug:1")
	if err != nil || string(v) != `{"id":"1"}` {
		t.Fatalf("expected stored value, got %q (%v)", v, err)
	}

	if err := c.Delete(ctx, "bug:1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "bug:1"); !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatalf("expected miss after delete, got %v", err)
	}
}

func TestResultCache_DeleteByPrefixAcrossTTLClasses(t *testing.T) {
	c := NewResultCache(Config{})
	ctx := context.Background()

	_ = c.Set(ctx, "list:a", []byte("1"), time.Minute)
	_ = c.Set(ctx, "list:b", []byte("2"), time.Minute)
	_ = c.Set(ctx, "stats:x", []byte("3"), 5*time.Minute)
	_ = c.Set(ctx, "bug:1", []byte("4"), time.Minute)

	if err := c.DeleteByPrefix(ctx, "list:"); err != nil {
		t.Fatalf("DeleteByPrefix: %v", err)
	}
	for _, k := range []string{"list:a", "list:b"} {
		if _, err := c.Get(ctx, k); !errors.Is(err, ports.ErrCacheMiss) {
			t.Errorf("expected %s swept", k)
		}
	}
	for _, k := range []string{"stats:x", "bug:1"} {
		if _, err := c.Get(ctx, k); err != nil {
			t.Errorf("expected %s to survive, got %v", k, err)
		}
	}

	_ = c.DeleteByPrefix(ctx, "stats:")
	if _, err := c.Get(ctx, "stats:x"); !errors.Is(err, ports.ErrCacheMiss) {
		t.Fatal("expected stats entry swept from its own TTL class")
	}
}

func TestResultCache_ResetMovesKeyBetweenTTLs(t *testing.T) {
	c := NewResultCache(Config{})
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("old"), time.Minute)
	_ = c.Set(ctx, "k", []byte("new"), time.Hour)

	v, err := c.Get(ctx, "k")
	if err != nil || string(v) != "new" {
		t.Fatalf("expected latest value, got %q (%v)", v, err)
	}
}
