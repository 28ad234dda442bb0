package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harry-2401/reddit/internal/kafka"
	"github.com/harry-2401/reddit/internal/shared/apperr"
	"github.com/harry-2401/reddit/internal/shared/db/dbtest"
	"github.com/harry-2401/reddit/internal/user"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	svc    Service
	users  user.Service
	events *kafka.Recorder
	mr     *miniredis.Miniredis
	rdb    *redis.Client
	alice  *user.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	users := user.NewService(user.NewRepository(dbtest.Open(t, &user.User{})), bcrypt.MinCost)
	alice, err := users.Register(context.Background(), user.RegisterReq{
		Username: "alice", Email: "alice@example.com", Password: "old-pass",
	})
	if err != nil {
		t.Fatal(err)
	}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	events := &kafka.Recorder{}
	return &fixture{
		svc:    NewService(users, rdb, events, 72*time.Hour, "http://localhost:3000/"),
		users:  users,
		events: events,
		mr:     mr,
		rdb:    rdb,
		alice:  alice,
	}
}

// resetToken pulls the token out of the published change-password link.
func (f *fixture) resetToken(t *testing.T) string {
	t.Helper()
	msgs := f.events.Messages(kafka.TopicPasswordReset)
	if len(msgs) == 0 {
		t.Fatal("no password.reset event")
	}
	var ev ResetEvent
	if err := json.Unmarshal(msgs[len(msgs)-1].Value, &ev); err != nil {
		t.Fatal(err)
	}
	u, err := url.Parse(ev.Link)
	if err != nil {
		t.Fatal(err)
	}
	return u.Query().Get("token")
}

func TestForgotPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	if err := f.svc.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatal(err)
	}
	msgs := f.events.Messages(kafka.TopicPasswordReset)
	if len(msgs) != 1 || msgs[0].Key != strconv.FormatUint(f.alice.ID, 10) {
		t.Fatalf("events = %+v", msgs)
	}
	var ev ResetEvent
	if err := json.Unmarshal(msgs[0].Value, &ev); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(ev.Link, "http://localhost:3000/change-password?") || ev.Email != "alice@example.com" {
		t.Fatalf("event = %+v", ev)
	}

	token := f.resetToken(t)
	key := tokenPrefix + token
	got, err := f.mr.Get(key)
	if err != nil || got != strconv.FormatUint(f.alice.ID, 10) {
		t.Fatalf("stored token = %q, %v", got, err)
	}
	if ttl := f.mr.TTL(key); ttl != 72*time.Hour {
		t.Fatalf("ttl = %s, want 72h", ttl)
	}
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	f := setup(t)
	if err := f.svc.ForgotPassword(context.Background(), "nobody@example.com"); err != nil {
		t.Fatalf("unknown email err = %v, want nil", err)
	}
	if n := len(f.events.Messages(kafka.TopicPasswordReset)); n != 0 {
		t.Fatalf("published %d events for an unknown email", n)
	}
	if keys := f.mr.Keys(); len(keys) != 0 {
		t.Fatalf("stored keys %v for an unknown email", keys)
	}
}

func TestForgotPasswordSurvivesPublishFailure(t *testing.T) {
	f := setup(t)
	f.events.Err = errors.New("broker down")
	if err := f.svc.ForgotPassword(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
	if keys := f.mr.Keys(); len(keys) != 1 {
		t.Fatalf("keys = %v, want the reset token", keys)
	}
}

func TestChangePassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if err := f.svc.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatal(err)
	}
	token := f.resetToken(t)

	u, err := f.svc.ChangePassword(ctx, ChangeReq{Token: token, UserID: f.alice.ID, NewPassword: "new-pass"})
	if err != nil {
		t.Fatalf("change: %v", err)
	}
	if u.ID != f.alice.ID {
		t.Fatalf("user = %d, want %d", u.ID, f.alice.ID)
	}
	if _, err := f.users.Login(ctx, user.LoginReq{UsernameOrEmail: "alice", Password: "new-pass"}); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
	if f.mr.Exists(tokenPrefix + token) {
		t.Fatal("reset token should be single use")
	}

	_, err = f.svc.ChangePassword(ctx, ChangeReq{Token: token, UserID: f.alice.ID, NewPassword: "third-pass"})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("reused token err = %v, want ErrInvalid", err)
	}
}

func TestChangePasswordRejects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if err := f.svc.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatal(err)
	}
	token := f.resetToken(t)

	tests := []struct {
		name  string
		in    ChangeReq
		field string
	}{
		{"short password", ChangeReq{Token: token, UserID: f.alice.ID, NewPassword: "ab"}, "new_password"},
		{"unknown token", ChangeReq{Token: "nope", UserID: f.alice.ID, NewPassword: "new-pass"}, "token"},
		{"someone else's token", ChangeReq{Token: token, UserID: f.alice.ID + 1, NewPassword: "new-pass"}, "token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ChangePassword(ctx, tt.in)
			var ve *apperr.ValidationError
			if !errors.As(err, &ve) || ve.Fields[0].Field != tt.field {
				t.Fatalf("err = %v, want a %s field error", err, tt.field)
			}
		})
	}

	if _, err := f.users.Login(ctx, user.LoginReq{UsernameOrEmail: "alice", Password: "old-pass"}); err != nil {
		t.Fatalf("rejected changes must keep the old password: %v", err)
	}
	if !f.mr.Exists(tokenPrefix + token) {
		t.Fatal("rejected changes must not consume the token")
	}
}

func TestChangePasswordExpiredToken(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if err := f.svc.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatal(err)
	}
	token := f.resetToken(t)
	f.mr.FastForward(73 * time.Hour)

	_, err := f.svc.ChangePassword(ctx, ChangeReq{Token: token, UserID: f.alice.ID, NewPassword: "new-pass"})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestChangePasswordTokenRedeemedOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if err := f.svc.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatal(err)
	}
	token := f.resetToken(t)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.ChangePassword(ctx, ChangeReq{Token: token, UserID: f.alice.ID, NewPassword: "pass-" + strconv.Itoa(i)})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, apperr.ErrInvalid):
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d requests redeemed the token, want exactly 1", ok)
	}
}

type brokenPasswords struct {
	user.Service
}

func (brokenPasswords) SetPassword(context.Context, uint64, string) error {
	return fmt.Errorf("%w: db gone", apperr.ErrInfrastructure)
}

func TestChangePasswordRestoresTokenOnFailure(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	if err := f.svc.ForgotPassword(ctx, "alice@example.com"); err != nil {
		t.Fatal(err)
	}
	token := f.resetToken(t)

	svc := NewService(brokenPasswords{f.users}, f.rdb, f.events, 72*time.Hour, "http://localhost:3000")
	_, err := svc.ChangePassword(ctx, ChangeReq{Token: token, UserID: f.alice.ID, NewPassword: "new-pass"})
	if !errors.Is(err, apperr.ErrInfrastructure) {
		t.Fatalf("err = %v, want ErrInfrastructure", err)
	}
	if !f.mr.Exists(tokenPrefix + token) {
		t.Fatal("token lost after a failed update")
	}
	if ttl := f.mr.TTL(tokenPrefix + token); ttl <= 0 || ttl > 72*time.Hour {
		t.Fatalf("restored ttl = %s", ttl)
	}

	if _, err := f.svc.ChangePassword(ctx, ChangeReq{Token: token, UserID: f.alice.ID, NewPassword: "new-pass"}); err != nil {
		t.Fatalf("retry with the restored token: %v", err)
	}
}
