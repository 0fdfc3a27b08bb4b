package main

import (
	"context"
	"flag"
	"os"

	"github.com/bugtracker/bugtracker/internal/app"
	"github.com/bugtracker/bugtracker/internal/infrastructure/seed"
	"github.com/bugtracker/bugtracker/internal/pkg/config"
	"github.com/bugtracker/bugtracker/pkg/logger"
)

func main() {
	cfg := config.Load()
	path := flag.String("file", cfg.SeedFile, "YAML seed file of users and bugs")
	flag.Parse()

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  true,
		Service: "bugtracker-seed",
	})

	f, err := seed.ParseFile(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("read seed file")
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}

	res, err := seed.NewLoader(a.Users, a.Bugs, logger.Component(log, "seed")).Apply(ctx, f)
	a.Close(ctx)
	if err != nil {
		log.Error().Err(err).
			Int("users_created", res.UsersCreated).
			Int("bugs_created", res.BugsCreated).
			Msg("seed failed")
		os.Exit(1)
	}

	log.Info().
		Int("users_created", res.UsersCreated).
		Int("users_skipped", res.UsersSkipped).
		Int("bugs_created", res.BugsCreated).
		Int("comments_added", res.CommentsAdded).
		Msg("seed completed")
}
