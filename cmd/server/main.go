package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bugtracker/bugtracker/internal/api"
	"github.com/bugtracker/bugtracker/internal/api/handler"
	"github.com/bugtracker/bugtracker/internal/app"
	"github.com/bugtracker/bugtracker/internal/pkg/config"
	"github.com/bugtracker/bugtracker/pkg/logger"
)

// @title Bug Tracker API
// @version 1.0
// @description Bugs, comments and users with read-through cached listings.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "bugtracker",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close(context.Background())

	a.Retry.Start(ctx)

	e := api.NewRouter(api.Deps{
		Bugs:      a.Bugs,
		Users:     a.Users,
		Auth:      a.Auth,
		JWTSecret: cfg.JWTSecret,
		Checks: map[string]handler.Pinger{
			"mongodb": a.Store,
			"cache":   a.Cache,
		},
		Logger: logger.Component(log, "http"),
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("cache_backend", cfg.Cache.Backend).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server start")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
