package migrate

import (
	"github.com/harry-2401/reddit/internal/post"
	"github.com/harry-2401/reddit/internal/shared/db"
	"github.com/harry-2401/reddit/internal/user"
	"github.com/harry-2401/reddit/internal/vote"
)

func Models() []any {
	return []any{&user.User{}, &post.Post{}, &vote.Vote{}}
}

func AutoMigrateAll(store *db.Store) error {
	return store.Base.AutoMigrate(Models()...)
}
