package post

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/harry-2401/reddit/internal/kafka"
	"github.com/harry-2401/reddit/internal/metrics"
	"github.com/harry-2401/reddit/internal/shared/apperr"
	"github.com/harry-2401/reddit/internal/shared/validate"
)

type Service interface {
	ListPosts(ctx context.Context, limit int, cursor *Cursor) (*Page, error)
	Get(ctx context.Context, id uint64) (*Post, error)
	Create(ctx context.Context, userID uint64, in CreateReq) (*Post, error)
	Update(ctx context.Context, id, userID uint64, in UpdateReq) (*Post, error)
	Delete(ctx context.Context, id, userID uint64) error
}

type service struct {
	repo   Repository
	events kafka.Publisher
	now    func() time.Time
}

func NewService(r Repository, events kafka.Publisher) Service {
	return &service{repo: r, events: events, now: time.Now}
}

// ClampLimit bounds a requested page size to [1, MaxPageSize]; anything
// below 1 means a full page.
func ClampLimit(limit int) int {
	if limit < 1 || limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

func (s *service) ListPosts(ctx context.Context, limit int, cursor *Cursor) (*Page, error) {
	limit = ClampLimit(limit)

	// one extra row tells whether anything follows the page
	rows, err := s.repo.ListPage(ctx, limit+1, cursor)
	if err != nil {
		return nil, err
	}
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}

	page := &Page{Posts: rows, TotalCount: total}
	if len(rows) > limit {
		page.Posts = rows[:limit]
		page.HasMore = true
	}
	if n := len(page.Posts); n > 0 {
		page.Cursor = CursorAfter(page.Posts[n-1]).String()
	}
	return page, nil
}

func (s *service) Get(ctx context.Context, id uint64) (*Post, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) Create(ctx context.Context, userID uint64, in CreateReq) (*Post, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthorized
	}
	in.Title, in.Text = strings.TrimSpace(in.Title), strings.TrimSpace(in.Text)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	p := &Post{Title: in.Title, Text: in.Text, UserID: userID, CreatedAt: now, UpdatedAt: now}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.publish(ctx, kafka.TopicPostsCreated, p)
	return p, nil
}

func (s *service) Update(ctx context.Context, id, userID uint64, in UpdateReq) (*Post, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthorized
	}
	in.Title, in.Text = strings.TrimSpace(in.Title), strings.TrimSpace(in.Text)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, userID, in.Title, in.Text, s.now().UTC().Truncate(time.Microsecond))
}

func (s *service) Delete(ctx context.Context, id, userID uint64) error {
	if userID == 0 {
		return apperr.ErrUnauthorized
	}
	p, err := s.repo.Delete(ctx, id, userID)
	if err != nil {
		return err
	}
	s.publish(ctx, kafka.TopicPostsDeleted, p)
	return nil
}

// publish runs after the write has committed; a failure is logged and counted
// but does not undo the write.
func (s *service) publish(ctx context.Context, topic string, p *Post) {
	ev := Event{PostID: p.ID, UserID: p.UserID, Title: p.Title, CreatedAt: p.CreatedAt}
	if err := s.events.Publish(ctx, topic, strconv.FormatUint(p.ID, 10), ev); err != nil {
		metrics.EventPublishFailures.WithLabelValues(topic).Inc()
		slog.WarnContext(ctx, "publish post event", "topic", topic, "post_id", p.ID, "err", err)
	}
}
