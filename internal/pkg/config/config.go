package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"

	"github.com/bugtracker/bugtracker/pkg/logger"
)

type Config struct {
	Port      string        `env:"PORT,      default=8080"`
	Env       string        `env:"ENV,       default=development"`
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"TOKEN_TTL, default=24h"`
	LogLevel  string        `env:"LOG_LEVEL, default=info"`
	SeedFile  string        `env:"SEED_FILE, default=seed.yaml"`

	Mongo  MongoConfig
	Redis  RedisConfig
	Cache  CacheConfig
	Policy PolicyConfig
}

type MongoConfig struct {
	URI          string        `env:"MONGO_URI,          default=mongodb://localhost:27017"`
	Database     string        `env:"MONGO_DB,           default=bugtracker"`
	Timeout      time.Duration `env:"MONGO_TIMEOUT,      default=10s"`
	Transactions bool          `env:"MONGO_TRANSACTIONS, default=false"`
}

// RedisConfig addresses the cache. REDIS_URL, when set, wins over the
// discrete address fields.
type RedisConfig struct {
	URL      string        `env:"REDIS_URL"`
	Addr     string        `env:"REDIS_ADDR,      default=localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB,        default=0"`
	Timeout  time.Duration `env:"REDIS_TIMEOUT,   default=5s"`
	PoolSize int           `env:"REDIS_POOL_SIZE, default=10"`
}

type CacheConfig struct {
	Backend       string        `env:"CACHE_BACKEND,        default=redis"`
	Namespace     string        `env:"CACHE_NAMESPACE,      default=bugtracker"`
	ListTTL       time.Duration `env:"CACHE_LIST_TTL,       default=1m"`
	StatsTTL      time.Duration `env:"CACHE_STATS_TTL,      default=5m"`
	BugTTL        time.Duration `env:"CACHE_BUG_TTL,        default=1m"`
	OpTimeout     time.Duration `env:"CACHE_OP_TIMEOUT,     default=250ms"`
	RetryWorkers  int           `env:"CACHE_RETRY_WORKERS,  default=2"`
	RetryAttempts int           `env:"CACHE_RETRY_ATTEMPTS, default=3"`
}

type PolicyConfig struct {
	ReporterDelete  string `env:"REPORTER_DELETE_POLICY,  default=reject"`
	UnknownAssignee string `env:"UNKNOWN_ASSIGNEE_POLICY, default=reject"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads and validates configuration from l.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings whose values are drawn from a fixed set.
func (c *Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	switch c.Cache.Backend {
	case "redis", "memory":
	default:
		return fmt.Errorf("CACHE_BACKEND must be redis or memory, got %q", c.Cache.Backend)
	}
	switch c.Policy.ReporterDelete {
	case "reject", "cascade":
	default:
		return fmt.Errorf("REPORTER_DELETE_POLICY must be reject or cascade, got %q", c.Policy.ReporterDelete)
	}
	switch c.Policy.UnknownAssignee {
	case "reject", "ignore":
	default:
		return fmt.Errorf("UNKNOWN_ASSIGNEE_POLICY must be reject or ignore, got %q", c.Policy.UnknownAssignee)
	}
	if c.Redis.PoolSize < 0 {
		return fmt.Errorf("REDIS_POOL_SIZE must not be negative")
	}
	if c.Cache.ListTTL <= 0 || c.Cache.StatsTTL <= 0 || c.Cache.BugTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.Env == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

// IsDevelopment reports whether the process runs with ENV=development.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
