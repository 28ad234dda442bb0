// Package recovery implements the forgot-password / change-password flow. A
// reset token lives in Redis under forgot-password:<token> and maps to the
// user id it was issued for.
package recovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/harry-2401/reddit/internal/kafka"
	"github.com/harry-2401/reddit/internal/metrics"
	"github.com/harry-2401/reddit/internal/shared/apperr"
	"github.com/harry-2401/reddit/internal/shared/validate"
	"github.com/harry-2401/reddit/internal/user"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const tokenPrefix = "forgot-password:"

type ForgotReq struct {
	Email string `json:"email" validate:"required"`
}

type ChangeReq struct {
	Token       string `json:"token" validate:"required"`
	UserID      uint64 `json:"user_id" validate:"required"`
	NewPassword string `json:"new_password" validate:"gt=2"`
}

// ResetEvent is consumed by the mailer.
type ResetEvent struct {
	UserID    uint64    `json:"user_id"`
	Email     string    `json:"email"`
	Link      string    `json:"link"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service interface {
	ForgotPassword(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, in ChangeReq) (*user.User, error)
}

type service struct {
	users  user.Service
	rdb    *redis.Client
	events kafka.Publisher
	ttl    time.Duration
	origin string
}

func NewService(users user.Service, rdb *redis.Client, events kafka.Publisher, ttl time.Duration, origin string) Service {
	return &service{users: users, rdb: rdb, events: events, ttl: ttl, origin: strings.TrimRight(origin, "/")}
}

// ForgotPassword reports success for unknown addresses too, so callers cannot
// probe which emails are registered.
func (s *service) ForgotPassword(ctx context.Context, email string) error {
	if err := validate.Struct(ForgotReq{Email: email}); err != nil {
		return err
	}
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		slog.DebugContext(ctx, "password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}

	token := uuid.NewString()
	if err := s.rdb.Set(ctx, tokenPrefix+token, u.ID, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: store reset token: %w", apperr.ErrInfrastructure, err)
	}

	ev := ResetEvent{UserID: u.ID, Email: u.Email, Link: s.link(token, u.ID), ExpiresAt: time.Now().Add(s.ttl).UTC()}
	if err := s.events.Publish(ctx, kafka.TopicPasswordReset, strconv.FormatUint(u.ID, 10), ev); err != nil {
		metrics.EventPublishFailures.WithLabelValues(kafka.TopicPasswordReset).Inc()
		slog.WarnContext(ctx, "publish password reset", "user_id", u.ID, "err", err)
	}
	return nil
}

func (s *service) link(token string, userID uint64) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("userId", strconv.FormatUint(userID, 10))
	return s.origin + "/change-password?" + q.Encode()
}

func (s *service) ChangePassword(ctx context.Context, in ChangeReq) (*user.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	key := tokenPrefix + in.Token
	ttl, err := s.claim(ctx, key, in.UserID)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetPassword(ctx, in.UserID, in.NewPassword); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Field("token", "user no longer exists")
		}
		// give the token back so the user can retry
		if rerr := s.rdb.Set(ctx, key, in.UserID, ttl).Err(); rerr != nil {
			slog.WarnContext(ctx, "restore reset token", "user_id", in.UserID, "err", rerr)
		}
		return nil, err
	}
	return s.users.Get(ctx, in.UserID)
}

// claim checks that the token at key belongs to userID and deletes it in one
// optimistic transaction, so a token is redeemed at most once. It returns the
// time the token had left.
func (s *service) claim(ctx context.Context, key string, userID uint64) (time.Duration, error) {
	var ttl time.Duration
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := tx.Get(ctx, key).Result()
		if err != nil {
			return err
		}
		if stored != strconv.FormatUint(userID, 10) {
			return apperr.Field("token", "token does not belong to this user")
		}
		if ttl, err = tx.PTTL(ctx, key).Result(); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, key)
			return nil
		})
		return err
	}, key)

	switch {
	case err == nil:
		if ttl <= 0 {
			ttl = s.ttl
		}
		return ttl, nil
	case errors.Is(err, redis.Nil), errors.Is(err, redis.TxFailedErr):
		// expired, or redeemed by a concurrent request
		return 0, apperr.Field("token", "token expired")
	case errors.Is(err, apperr.ErrInvalid):
		return 0, err
	}
	return 0, fmt.Errorf("%w: claim reset token: %w", apperr.ErrInfrastructure, err)
}
