// Package app wires configuration, stores, caches and services into the
// graph shared by the server and seed commands.
package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bugtracker/bugtracker/internal/core/cache"
	"github.com/bugtracker/bugtracker/internal/core/ports"
	"github.com/bugtracker/bugtracker/internal/core/service"
	"github.com/bugtracker/bugtracker/internal/infrastructure/cache/memory"
	"github.com/bugtracker/bugtracker/internal/infrastructure/credential"
	mongodb "github.com/bugtracker/bugtracker/internal/infrastructure/db/mongo"
	redisdb "github.com/bugtracker/bugtracker/internal/infrastructure/db/redis"
	"github.com/bugtracker/bugtracker/internal/infrastructure/queue"
	"github.com/bugtracker/bugtracker/internal/pkg/config"
	"github.com/bugtracker/bugtracker/pkg/logger"
)

// App holds the assembled services and the connections they depend on.
type App struct {
	Bugs  *service.BugService
	Users *service.UserService
	Auth  *service.AuthService

	Store *mongodb.UserRepository
	Cache ports.ResultCache
	Retry *queue.RetryQueue

	mongo *mongo.Client
	redis goredis.UniversalClient
}

// New connects to the document store and the configured cache backend and
// builds every service. The retry queue is created but not started.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	assigneePolicy, err := service.ParseAssigneePolicy(cfg.Policy.UnknownAssignee)
	if err != nil {
		return nil, err
	}
	reporterPolicy, err := service.ParseReporterPolicy(cfg.Policy.ReporterDelete)
	if err != nil {
		return nil, err
	}

	client, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		return nil, err
	}
	a := &App{mongo: client}

	if err := mongodb.EnsureIndexes(ctx, db); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("ensure indexes: %w", err)
	}

	switch cfg.Cache.Backend {
	case "memory":
		a.Cache = memory.NewResultCache(memory.DefaultConfig())
	default:
		rdb, err := redisdb.Open(ctx, redisdb.Config{
			URL:      cfg.Redis.URL,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Timeout:  cfg.Redis.Timeout,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.redis = rdb
		a.Cache = redisdb.NewResultCache(rdb, cfg.Cache.Namespace)
	}

	bugRepo := mongodb.NewBugRepository(db)
	userRepo := mongodb.NewUserRepository(db)
	a.Store = userRepo

	cacheLog := logger.Component(log, "cache")
	reads := cache.NewReadThrough(a.Cache, cfg.Cache.OpTimeout, cacheLog)
	invalidator := cache.NewInvalidator(a.Cache, cfg.Cache.OpTimeout, cacheLog)
	a.Retry = queue.NewRetryQueue(invalidator, queue.Options{
		Workers:  cfg.Cache.RetryWorkers,
		Attempts: cfg.Cache.RetryAttempts,
	}, logger.Component(log, "retry_queue"))
	invalidator.SetRetrier(a.Retry)

	a.Users = service.NewUserService(
		userRepo,
		bugRepo,
		mongodb.NewTransactor(client, cfg.Mongo.Transactions),
		credential.NewHasher(0),
		invalidator,
		reporterPolicy,
		logger.Component(log, "user_service"),
	)
	a.Bugs = service.NewBugService(bugRepo, userRepo, reads, invalidator, service.BugOptions{
		ListTTL:        cfg.Cache.ListTTL,
		StatsTTL:       cfg.Cache.StatsTTL,
		BugTTL:         cfg.Cache.BugTTL,
		AssigneePolicy: assigneePolicy,
	}, logger.Component(log, "bug_service"))
	a.Auth = service.NewAuthService(a.Users, cfg.JWTSecret, cfg.TokenTTL)

	return a, nil
}

// Close releases the store and cache connections.
func (a *App) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.mongo != nil {
		_ = a.mongo.Disconnect(ctx)
	}
}
