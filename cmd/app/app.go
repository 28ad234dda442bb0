package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/harry-2401/reddit/configs"
	"github.com/harry-2401/reddit/internal/kafka"
	"github.com/harry-2401/reddit/internal/migrate"
	"github.com/harry-2401/reddit/internal/post"
	"github.com/harry-2401/reddit/internal/shared/db"
	"github.com/harry-2401/reddit/internal/shared/redisx"
	"github.com/harry-2401/reddit/internal/user"
	"github.com/harry-2401/reddit/internal/vote"

	"github.com/redis/go-redis/v9"
)

// app holds the long-lived dependencies shared by the subcommands.
type app struct {
	cfg    *configs.Config
	store  *db.Store
	rdb    *redis.Client
	events kafka.Publisher

	users user.Service
	posts post.Service
	votes vote.Service
}

func loadConfig() (*configs.Config, error) {
	cfg, err := configs.Load(configPath)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log)
	return cfg, nil
}

func setupLogging(cfg configs.Log) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(h))
}

func openStore(cfg *configs.Config) (*db.Store, error) {
	store, err := db.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := migrate.AutoMigrateAll(store); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return store, nil
}

func newApp(cfg *configs.Config) (*app, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redisx.Open(cfg.Redis)
	events := kafka.NewWriter(cfg.Kafka)

	return &app{
		cfg:    cfg,
		store:  store,
		rdb:    rdb,
		events: events,
		users:  user.NewService(user.NewRepository(store), 0),
		posts:  post.NewService(post.NewRepository(store, rdb, cfg.TotalCountTTL), events),
		votes: vote.NewService(vote.NewRepository(store), events, vote.Options{
			Timeout:  cfg.Vote.Timeout,
			Attempts: cfg.Vote.Retries,
		}),
	}, nil
}

func (a *app) ready(ctx context.Context) error {
	if err := a.store.Ping(ctx); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

func (a *app) close() {
	if err := a.events.Close(); err != nil {
		slog.Warn("close kafka writer", "err", err)
	}
	if err := a.rdb.Close(); err != nil {
		slog.Warn("close redis", "err", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("close db", "err", err)
	}
}
