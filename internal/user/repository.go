package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/harry-2401/reddit/internal/shared/apperr"
	"github.com/harry-2401/reddit/internal/shared/db"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uint64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ListByIDs(ctx context.Context, ids []uint64) ([]User, error)
	UpdatePassword(ctx context.Context, id uint64, hash string) error
}

type repo struct {
	store *db.Store
}

func NewRepository(s *db.Store) Repository { return &repo{store: s} }

func (r *repo) Create(ctx context.Context, u *User) error {
	err := r.store.Write(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("create user %q: %w", u.Username, ErrTaken)
	}
	return db.Classify(err, "create user")
}

func (r *repo) GetByID(ctx context.Context, id uint64) (*User, error) {
	var u User
	if err := r.store.Read(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, db.Classify(err, fmt.Sprintf("get user %d", id))
	}
	return &u, nil
}

func (r *repo) GetByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	if err := r.store.Write(ctx).First(&u, "username = ?", username).Error; err != nil {
		return nil, db.Classify(err, "get user by username")
	}
	return &u, nil
}

func (r *repo) GetByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	if err := r.store.Write(ctx).First(&u, "email = ?", email).Error; err != nil {
		return nil, db.Classify(err, "get user by email")
	}
	return &u, nil
}

func (r *repo) ListByIDs(ctx context.Context, ids []uint64) ([]User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []User
	if err := r.store.Read(ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, db.Classify(err, "list users")
	}
	return out, nil
}

func (r *repo) UpdatePassword(ctx context.Context, id uint64, hash string) error {
	res := r.store.Write(ctx).Model(&User{}).Where("id = ?", id).Update("pass_hash", hash)
	if res.Error != nil {
		return db.Classify(res.Error, "update password")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update password for user %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}
