package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bugtracker/bugtracker/internal/core/domain"
)

func unreachableClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
}

func TestResultCache_KeyNamespace(t *testing.T) {
	c := NewResultCache(nil, "bugtracker")
	if got := c.key("list:abc"); got != "bugtracker:list:abc" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := NewResultCache(nil, "").key("bug:1"); got != "bug:1" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestResultCache_UnreachableIsUnavailable(t *testing.T) {
	client := unreachableClient()
	defer client.Close()
	c := NewResultCache(client, "test")
	ctx := context.Background()

	if _, err := c.Get(ctx, "bug:1"); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("Get: expected ErrUnavailable, got %v", err)
	}
	if err := c.Set(ctx, "bug:1", []byte("{}"), time.Minute); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("Set: expected ErrUnavailable, got %v", err)
	}
	if err := c.DeleteByPrefix(ctx, "list:"); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("DeleteByPrefix: expected ErrUnavailable, got %v", err)
	}
}

func TestResultCache_DeleteNoKeysIsNoop(t *testing.T) {
	c := NewResultCache(unreachableClient(), "test")
	if err := c.Delete(context.Background()); err != nil {
		t.Fatalf("expected no-op, got %v", err)
	}
}
