package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harry-2401/reddit/internal/shared/apperr"
	"github.com/harry-2401/reddit/internal/shared/db"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const totalCountKey = "posts:total"

type Repository interface {
	Create(ctx context.Context, p *Post) error
	GetByID(ctx context.Context, id uint64) (*Post, error)
	Update(ctx context.Context, id, userID uint64, title, text string, at time.Time) (*Post, error)
	Delete(ctx context.Context, id, userID uint64) (*Post, error)
	// ListPage returns up to limit posts strictly after the cursor in
	// created_at DESC, id DESC order. A nil cursor starts at the newest post.
	ListPage(ctx context.Context, limit int, after *Cursor) ([]Post, error)
	Count(ctx context.Context) (int64, error)
}

type repo struct {
	store    *db.Store
	rdb      *redis.Client
	countTTL time.Duration
}

// NewRepository builds the gorm repository. rdb may be nil, in which case the
// total count is always read from the store.
func NewRepository(s *db.Store, rdb *redis.Client, countTTL time.Duration) Repository {
	return &repo{store: s, rdb: rdb, countTTL: countTTL}
}

func (r *repo) Create(ctx context.Context, p *Post) error {
	if err := r.store.Write(ctx).Create(p).Error; err != nil {
		return db.Classify(err, "create post")
	}
	r.invalidateCount(ctx)
	return nil
}

func (r *repo) GetByID(ctx context.Context, id uint64) (*Post, error) {
	var p Post
	if err := r.store.Read(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, db.Classify(err, fmt.Sprintf("get post %d", id))
	}
	return &p, nil
}

func (r *repo) Update(ctx context.Context, id, userID uint64, title, text string, at time.Time) (*Post, error) {
	var p Post
	err := r.store.Write(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error; err != nil {
			return err
		}
		if p.UserID != userID {
			return apperr.ErrForbidden
		}
		p.Title, p.Text, p.UpdatedAt = title, text, at
		return tx.Model(&Post{}).Where("id = ?", id).
			Updates(map[string]any{"title": title, "text": text, "updated_at": at}).Error
	})
	if err != nil {
		return nil, db.Classify(err, fmt.Sprintf("update post %d", id))
	}
	return &p, nil
}

// Delete removes the post and every vote cast on it in one transaction so
// that no vote outlives the points it contributed to.
func (r *repo) Delete(ctx context.Context, id, userID uint64) (*Post, error) {
	var p Post
	err := r.store.Write(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", id).Error; err != nil {
			return err
		}
		if p.UserID != userID {
			return apperr.ErrForbidden
		}
		if err := tx.Exec("DELETE FROM votes WHERE post_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&Post{}, "id = ?", id).Error
	})
	if err != nil {
		return nil, db.Classify(err, fmt.Sprintf("delete post %d", id))
	}
	r.invalidateCount(ctx)
	return &p, nil
}

func (r *repo) ListPage(ctx context.Context, limit int, after *Cursor) ([]Post, error) {
	q := r.store.Read(ctx).Model(&Post{}).Order("created_at DESC, id DESC").Limit(limit)
	if after != nil {
		if after.ID == 0 {
			q = q.Where("created_at < ?", after.CreatedAt)
		} else {
			q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", after.CreatedAt, after.CreatedAt, after.ID)
		}
	}
	posts := make([]Post, 0, limit)
	if err := q.Find(&posts).Error; err != nil {
		return nil, db.Classify(err, "list posts")
	}
	return posts, nil
}

func (r *repo) Count(ctx context.Context) (int64, error) {
	if r.rdb != nil {
		n, err := r.rdb.Get(ctx, totalCountKey).Int64()
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, redis.Nil) {
			slog.WarnContext(ctx, "total count cache read failed", "err", err)
		}
	}

	var n int64
	if err := r.store.Read(ctx).Model(&Post{}).Count(&n).Error; err != nil {
		return 0, db.Classify(err, "count posts")
	}

	if r.rdb != nil {
		if err := r.rdb.Set(ctx, totalCountKey, n, r.countTTL).Err(); err != nil {
			slog.WarnContext(ctx, "total count cache write failed", "err", err)
		}
	}
	return n, nil
}

func (r *repo) invalidateCount(ctx context.Context) {
	if r.rdb == nil {
		return
	}
	if err := r.rdb.Del(ctx, totalCountKey).Err(); err != nil {
		slog.WarnContext(ctx, "total count cache invalidate failed", "err", err)
	}
}
