// Package dbtest opens throwaway SQLite-backed stores for repository tests.
package dbtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/harry-2401/reddit/internal/shared/db"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open creates a file database in t.TempDir and migrates models. The pool is
// limited to one connection so concurrent transactions queue up the way row
// locks make them queue on postgres.
func Open(t testing.TB, models ...any) *db.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	g, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_foreign_keys=on"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := g.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		if err := g.AutoMigrate(models...); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	return db.New(g)
}

// PostgresEnv names the DSN of a scratch database for tests that need real
// row locks. OpenPostgres skips the test when it is unset.
const PostgresEnv = "TEST_POSTGRES_DSN"

// OpenPostgres recreates the tables of models in the database at
// $TEST_POSTGRES_DSN and drops them again when the test ends. Unlike Open the
// pool is not limited, so concurrent transactions really run side by side.
func OpenPostgres(t testing.TB, models ...any) *db.Store {
	t.Helper()
	dsn := os.Getenv(PostgresEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresEnv)
	}
	g, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	sqlDB, err := g.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(32)

	m := g.Migrator()
	if err := m.DropTable(models...); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := g.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		_ = m.DropTable(models...)
		_ = sqlDB.Close()
	})
	return db.New(g)
}
