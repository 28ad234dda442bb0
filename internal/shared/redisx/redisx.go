package redisx

import (
	"context"
	"log/slog"
	"time"

	"github.com/harry-2401/reddit/configs"

	"github.com/redis/go-redis/v9"
)

func Open(cfg configs.Redis) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis ping failed, continuing", "addr", cfg.Addr(), "err", err)
	}
	return rdb
}
