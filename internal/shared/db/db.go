package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/harry-2401/reddit/configs"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Store wraps the primary connection. When replicas are configured, plain
// reads are routed to them by dbresolver and Write pins a query to the primary.
type Store struct {
	Base     *gorm.DB
	replicas bool
}

func New(base *gorm.DB) *Store { return &Store{Base: base} }

// Read returns a handle for queries that tolerate replica lag.
func (s *Store) Read(ctx context.Context) *gorm.DB { return s.Base.WithContext(ctx) }

// Write returns a handle pinned to the primary.
func (s *Store) Write(ctx context.Context) *gorm.DB {
	if s.replicas {
		return s.Base.WithContext(ctx).Clauses(dbresolver.Write)
	}
	return s.Base.WithContext(ctx)
}

func Open(cfg configs.DB) (*Store, error) {
	base, err := openWithRetry(cfg.DSN(), 8, time.Second)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}

	if err := applyPool(base, cfg); err != nil {
		return nil, err
	}

	s := &Store{Base: base}
	if len(cfg.Replicas) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.Replicas))
		for _, dsn := range cfg.Replicas {
			replicas = append(replicas, postgres.Open(dsn))
		}
		resolver := dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		}).
			SetMaxOpenConns(cfg.MaxOpenConns).
			SetMaxIdleConns(cfg.MaxIdleConns).
			SetConnMaxLifetime(cfg.ConnMaxLifetime)
		if err := base.Use(resolver); err != nil {
			return nil, fmt.Errorf("dbresolver: %w", err)
		}
		s.replicas = true
		slog.Info("db replicas registered", "count", len(replicas))
	}

	if err := base.Use(tracing.NewPlugin()); err != nil {
		return nil, fmt.Errorf("db tracing: %w", err)
	}
	return s, nil
}

func applyPool(base *gorm.DB, cfg configs.DB) error {
	sqlDB, err := base.DB()
	if err != nil {
		return fmt.Errorf("db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.Base.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.Base.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func openWithRetry(dsn string, attempts int, sleep time.Duration) (*gorm.DB, error) {
	var last error
	for i := 1; i <= attempts; i++ {
		g, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger:         gormLogger(),
			TranslateError: true,
		})
		if err == nil {
			sqlDB, e := g.DB()
			if e == nil {
				if e = pingWithTimeout(sqlDB, 2*time.Second); e == nil {
					return g, nil
				}
			}
			last = e
		} else {
			last = err
		}
		slog.Warn("db not ready, retrying", "attempt", i, "err", last)
		time.Sleep(sleep)
		if sleep < 8*time.Second {
			sleep *= 2
		}
	}
	return nil, last
}

// gormLogger sends gorm's warnings and slow queries through slog.
func gormLogger() logger.Interface {
	return logger.New(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

func pingWithTimeout(sqlDB *sql.DB, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- sqlDB.Ping() }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("db ping timeout after %s", timeout)
	}
}
