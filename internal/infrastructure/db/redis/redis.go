// Package redis backs the shared result cache with Redis.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bugtracker/bugtracker/internal/core/domain"
)

const defaultTimeout = 5 * time.Second

// Config addresses the Redis server. URL, when set, takes precedence over
// Addr, Password and DB.
type Config struct {
	URL      string
	Addr     string
	Password string
	DB       int
	Timeout  time.Duration
	PoolSize int // zero keeps the driver default
}

// Open builds a client from cfg and pings it. A server that does not answer
// within the timeout is reported as unavailable.
func Open(ctx context.Context, cfg Config) (redis.UniversalClient, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, domain.Unavailable("redis ping", err)
	}
	return client, nil
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return defaultTimeout
	}
	return c.Timeout
}

// options resolves c into driver options. Cache calls carry their own tighter
// deadline, so the socket timeouts only bound a wedged connection.
func (c Config) options() (*redis.UniversalOptions, error) {
	opts := &redis.UniversalOptions{
		Addrs:    []string{c.Addr},
		Password: c.Password,
		DB:       c.DB,
	}
	if c.URL != "" {
		u, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		opts.Addrs = []string{u.Addr}
		opts.Username = u.Username
		opts.Password = u.Password
		opts.DB = u.DB
		opts.TLSConfig = u.TLSConfig
	}

	t := c.timeout()
	opts.DialTimeout, opts.ReadTimeout, opts.WriteTimeout = t, t, t
	opts.PoolSize = c.PoolSize
	return opts, nil
}
