package migrate

import (
	"testing"

	"github.com/harry-2401/reddit/internal/shared/db/dbtest"
)

func TestAutoMigrateAll(t *testing.T) {
	store := dbtest.Open(t)
	if err := AutoMigrateAll(store); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := AutoMigrateAll(store); err != nil {
		t.Fatalf("second run must be a no-op: %v", err)
	}
	m := store.Base.Migrator()
	for _, table := range []string{"users", "posts", "votes"} {
		if !m.HasTable(table) {
			t.Errorf("table %s missing", table)
		}
	}
	if !m.HasIndex("posts", "idx_posts_feed") {
		t.Error("feed index missing")
	}
}
