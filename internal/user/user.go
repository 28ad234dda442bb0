package user

import (
	"fmt"
	"time"

	"github.com/harry-2401/reddit/internal/shared/apperr"
)

// ErrTaken is returned by Repository.Create when the username or email is
// already registered.
var ErrTaken = fmt.Errorf("%w: username or email already taken", apperr.ErrInvalid)

type User struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;size:64;not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;size:120;not null" json:"email"`
	PassHash  string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is what other users get to see, e.g. as a post's author.
type Summary struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
}

func (u User) Summary() Summary { return Summary{ID: u.ID, Username: u.Username} }

type RegisterReq struct {
	Username string `json:"username" validate:"gt=2,excludes=@"`
	Email    string `json:"email" validate:"required,contains=@,max=120"`
	Password string `json:"password" validate:"gt=2"`
}

type LoginReq struct {
	UsernameOrEmail string `json:"username_or_email" validate:"required"`
	Password        string `json:"password" validate:"required"`
}
