package vote

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/harry-2401/reddit/internal/kafka"
	"github.com/harry-2401/reddit/internal/metrics"
	"github.com/harry-2401/reddit/internal/post"
	"github.com/harry-2401/reddit/internal/shared/apperr"
)

type Result struct {
	Post    *post.Post
	Value   Value
	Outcome Outcome
}

type Service interface {
	// Cast records userID's vote on postID. Repeating the same vote is a
	// successful no-op reported as Unchanged.
	Cast(ctx context.Context, postID, userID uint64, value Value) (*Result, error)
	// ViewerLoader returns a fresh batching cache of viewer's votes. Build one
	// per request.
	ViewerLoader(viewer uint64) *ViewerLoader
}

type Options struct {
	// Timeout bounds each transaction attempt.
	Timeout time.Duration
	// Attempts is the number of tries on a retryable conflict.
	Attempts int
}

type service struct {
	repo   Repository
	events kafka.Publisher
	opts   Options
}

func NewService(r Repository, events kafka.Publisher, opts Options) Service {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	return &service{repo: r, events: events, opts: opts}
}

func (s *service) Cast(ctx context.Context, postID, userID uint64, value Value) (*Result, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthorized
	}
	if !value.Valid() {
		return nil, apperr.Field("value", "must be -1 or 1")
	}

	start := time.Now()
	defer func() { metrics.VoteDuration.Observe(time.Since(start).Seconds()) }()

	var err error
	for attempt := 1; attempt <= s.opts.Attempts; attempt++ {
		var (
			p       *post.Post
			outcome Outcome
		)
		p, outcome, err = s.castOnce(ctx, postID, userID, value)
		if err == nil {
			metrics.VotesCast.WithLabelValues(string(outcome)).Inc()
			if outcome != Unchanged {
				s.publish(ctx, userID, value, p, outcome)
			}
			return &Result{Post: p, Value: value, Outcome: outcome}, nil
		}
		if !apperr.Retryable(err) {
			return nil, err
		}
		metrics.VoteConflicts.Inc()
		slog.DebugContext(ctx, "vote conflict", "post_id", postID, "attempt", attempt, "err", err)
		if attempt == s.opts.Attempts || ctx.Err() != nil {
			break
		}
		if wait(ctx, attempt) != nil {
			break
		}
	}
	return nil, err
}

func (s *service) castOnce(ctx context.Context, postID, userID uint64, value Value) (*post.Post, Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	return s.repo.Cast(ctx, postID, userID, value)
}

// wait sleeps a short, jittered, linearly growing pause between attempts.
func wait(ctx context.Context, attempt int) error {
	d := time.Duration(attempt)*10*time.Millisecond + rand.N(10*time.Millisecond)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *service) publish(ctx context.Context, userID uint64, value Value, p *post.Post, outcome Outcome) {
	ev := Event{PostID: p.ID, UserID: userID, Value: value, Points: p.Points, Outcome: outcome, At: time.Now().UTC()}
	if err := s.events.Publish(ctx, kafka.TopicVotesCast, strconv.FormatUint(p.ID, 10), ev); err != nil {
		metrics.EventPublishFailures.WithLabelValues(kafka.TopicVotesCast).Inc()
		slog.WarnContext(ctx, "publish vote event", "post_id", p.ID, "err", err)
	}
}

func (s *service) ViewerLoader(viewer uint64) *ViewerLoader {
	return NewViewerLoader(s.repo, viewer)
}
