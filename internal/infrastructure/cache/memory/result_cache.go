// Package memory provides an in-process ports.ResultCache backed by sturdyc,
// for single-node deployments and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/bugtracker/bugtracker/internal/core/ports"
)

// Config holds the sturdyc sizing parameters shared by every TTL class.
type Config struct {
	// Capacity is the maximum number of entries per TTL class.
	Capacity int
	// NumShards is the number of shards per TTL class.
	NumShards int
	// EvictionPercentage is the share of entries evicted when a class is full.
	EvictionPercentage int
}

func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		EvictionPercentage: 10,
	}
}

// ResultCache keeps one sturdyc client per distinct TTL, since sturdyc
// expiry is configured per client. A key lives in at most one client.
type ResultCache struct {
	cfg Config

	mu      sync.RWMutex
	clients map[time.Duration]*sturdyc.Client[[]byte]
}

func NewResultCache(cfg Config) *ResultCache {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.NumShards <= 0 {
		cfg.NumShards = def.NumShards
	}
	if cfg.EvictionPercentage < 1 || cfg.EvictionPercentage > 100 {
		cfg.EvictionPercentage = def.EvictionPercentage
	}
	return &ResultCache{cfg: cfg, clients: make(map[time.Duration]*sturdyc.Client[[]byte])}
}

func (c *ResultCache) client(ttl time.Duration) *sturdyc.Client[[]byte] {
	c.mu.RLock()
	cl, ok := c.clients[ttl]
	c.mu.RUnlock()
	if ok {
		return cl
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[ttl]; ok {
		return cl
	}
	cl = sturdyc.New[[]byte](c.cfg.Capacity, c.cfg.NumShards, ttl, c.cfg.EvictionPercentage)
	c.clients[ttl] = cl
	return cl
}

func (c *ResultCache) all() []*sturdyc.Client[[]byte] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*sturdyc.Client[[]byte], 0, len(c.clients))
	for _, cl := range c.clients {
		out = append(out, cl)
	}
	return out
}

func (c *ResultCache) Get(_ context.Context, key string) ([]byte, error) {
	for _, cl := range c.all() {
		if v, ok := cl.Get(key); ok {
			return v, nil
		}
	}
	return nil, ports.ErrCacheMiss
}

func (c *ResultCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	target := c.client(ttl)
	for _, cl := range c.all() {
		if cl != target {
			cl.Delete(key)
		}
	}
	target.Set(key, value)
	return nil
}

func (c *ResultCache) Delete(_ context.Context, keys ...string) error {
	for _, cl := range c.all() {
		for _, k := range keys {
			cl.Delete(k)
		}
	}
	return nil
}

func (c *ResultCache) DeleteByPrefix(_ context.Context, prefix string) error {
	for _, cl := range c.all() {
		for _, k := range cl.ScanKeys() {
			if strings.HasPrefix(k, prefix) {
				cl.Delete(k)
			}
		}
	}
	return nil
}

func (c *ResultCache) Ping(context.Context) error { return nil }
