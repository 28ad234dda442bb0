package vote

import (
	"context"
	"fmt"

	"github.com/harry-2401/reddit/internal/post"
	"github.com/harry-2401/reddit/internal/shared/db"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	// Cast applies one vote atomically and returns the post as committed.
	Cast(ctx context.Context, postID, userID uint64, value Value) (*post.Post, Outcome, error)
	// ValuesFor returns the user's votes on postIDs in one query. Posts the
	// user has not voted on are absent from the map.
	ValuesFor(ctx context.Context, userID uint64, postIDs []uint64) (map[uint64]Value, error)
}

type repo struct {
	store *db.Store
}

func NewRepository(s *db.Store) Repository { return &repo{store: s} }

func (r *repo) Cast(ctx context.Context, postID, userID uint64, value Value) (*post.Post, Outcome, error) {
	var (
		p       post.Post
		outcome Outcome
	)
	err := r.store.Write(ctx).Transaction(func(tx *gorm.DB) error {
		// The row lock on the post serializes every vote on it until commit.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, "id = ?", postID).Error; err != nil {
			return err
		}

		var existing Vote
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Limit(1).Find(&existing)
		if res.Error != nil {
			return res.Error
		}
		var delta int64
		switch {
		case res.RowsAffected == 0:
			if err := tx.Create(&Vote{PostID: postID, UserID: userID, Value: value}).Error; err != nil {
				return err
			}
			outcome, delta = Created, int64(value)
		case existing.Value == value:
			outcome = Unchanged
			return nil
		default:
			if err := tx.Model(&existing).Update("value", value).Error; err != nil {
				return err
			}
			outcome, delta = Flipped, 2*int64(value)
		}

		if err := tx.Model(&post.Post{}).Where("id = ?", postID).
			UpdateColumn("points", gorm.Expr("points + ?", delta)).Error; err != nil {
			return err
		}
		p.Points += delta
		return nil
	})
	if err != nil {
		return nil, "", db.Classify(err, fmt.Sprintf("cast vote on post %d", postID))
	}
	return &p, outcome, nil
}

// ValuesFor reads from the primary so a viewer always sees their own
// freshly cast votes.
func (r *repo) ValuesFor(ctx context.Context, userID uint64, postIDs []uint64) (map[uint64]Value, error) {
	out := make(map[uint64]Value, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []Vote
	if err := r.store.Write(ctx).
		Select("post_id", "value").
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Find(&rows).Error; err != nil {
		return nil, db.Classify(err, "load viewer votes")
	}
	for _, v := range rows {
		out[v.PostID] = v.Value
	}
	return out, nil
}
