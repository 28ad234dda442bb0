package post

import (
	"time"
	"unicode/utf8"
)

// MaxPageSize caps every feed page regardless of what the caller asks for.
const MaxPageSize = 10

const snippetLen = 50

type Post struct {
	ID        uint64    `gorm:"primaryKey;index:idx_posts_feed,priority:2,sort:desc" json:"id"`
	Title     string    `gorm:"size:300;not null" json:"title"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	UserID    uint64    `gorm:"index;not null" json:"user_id"`
	Points    int64     `gorm:"not null;default:0" json:"points"`
	CreatedAt time.Time `gorm:"index:idx_posts_feed,priority:1,sort:desc" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snippet is the first 50 characters of the text, with "..." appended when
// the text is longer.
func (p Post) Snippet() string {
	if utf8.RuneCountInString(p.Text) <= snippetLen {
		return p.Text
	}
	return string([]rune(p.Text)[:snippetLen]) + "..."
}

// View is the wire shape of a post.
type View struct {
	Post
	TextSnippet string `json:"text_snippet"`
}

func NewView(p Post) View { return View{Post: p, TextSnippet: p.Snippet()} }

type Page struct {
	Posts      []Post `json:"posts"`
	TotalCount int64  `json:"total_count"`
	// Cursor points after the last post of the page; empty when the page is empty.
	Cursor  string `json:"cursor"`
	HasMore bool   `json:"has_more"`
}

type CreateReq struct {
	Title string `json:"title" validate:"required,max=300"`
	Text  string `json:"text" validate:"required"`
}

type UpdateReq struct {
	Title string `json:"title" validate:"required,max=300"`
	Text  string `json:"text" validate:"required"`
}

// Event is published on posts.created and posts.deleted.
type Event struct {
	PostID    uint64    `json:"post_id"`
	UserID    uint64    `json:"user_id"`
	Title     string    `json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
