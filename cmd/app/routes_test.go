package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harry-2401/reddit/configs"
	"github.com/harry-2401/reddit/internal/kafka"
	"github.com/harry-2401/reddit/internal/migrate"
	"github.com/harry-2401/reddit/internal/post"
	"github.com/harry-2401/reddit/internal/shared/db/dbtest"
	"github.com/harry-2401/reddit/internal/user"
	"github.com/harry-2401/reddit/internal/vote"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

func testApp(t *testing.T) (*app, *kafka.Recorder) {
	t.Helper()
	cfg, err := configs.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.RateLimit.Votes = 3

	store := dbtest.Open(t, migrate.Models()...)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	events := &kafka.Recorder{}

	return &app{
		cfg:    cfg,
		store:  store,
		rdb:    rdb,
		events: events,
		users:  user.NewService(user.NewRepository(store), bcrypt.MinCost),
		posts:  post.NewService(post.NewRepository(store, rdb, time.Minute), events),
		votes:  vote.NewService(vote.NewRepository(store), events, vote.Options{Timeout: 5 * time.Second}),
	}, events
}

type client struct {
	t     *testing.T
	h     http.Handler
	token string
}

func (c *client) do(method, path, body string, out any) int {
	c.t.Helper()
	req := httptest.NewRequestWithContext(context.Background(), method, path, strings.NewReader(body))
	req.RemoteAddr = "192.0.2.1:1234"
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			c.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return rec.Code
}

func TestEndToEnd(t *testing.T) {
	a, events := testApp(t)
	c := &client{t: t, h: a.routes()}

	var reg struct {
		User    user.User `json:"user"`
		Session struct {
			AccessToken string `json:"access_token"`
		} `json:"session"`
	}
	if code := c.do(http.MethodPost, "/auth/register", `{"username":"alice","email":"alice@example.com","password":"secret"}`, &reg); code != http.StatusCreated {
		t.Fatalf("register = %d", code)
	}

	if code := c.do(http.MethodPost, "/posts", `{"title":"hello","text":"world"}`, nil); code != http.StatusUnauthorized {
		t.Fatalf("anonymous create = %d, want 401", code)
	}
	c.token = reg.Session.AccessToken

	var created post.View
	if code := c.do(http.MethodPost, "/posts", `{"title":"hello","text":"world"}`, &created); code != http.StatusCreated {
		t.Fatalf("create = %d", code)
	}
	if len(events.Messages(kafka.TopicPostsCreated)) != 1 {
		t.Fatal("posts.created not published")
	}

	votePath := fmt.Sprintf("/posts/%d/vote", created.ID)
	var voted struct {
		Post       post.View  `json:"post"`
		VoteStatus vote.Value `json:"vote_status"`
	}
	if code := c.do(http.MethodPost, votePath, `{"value":1}`, &voted); code != http.StatusOK {
		t.Fatalf("vote = %d", code)
	}
	if voted.Post.Points != 1 || voted.VoteStatus != vote.Up {
		t.Fatalf("vote result = %+v", voted)
	}
	if code := c.do(http.MethodPost, votePath, `{"value":2}`, nil); code != http.StatusBadRequest {
		t.Fatalf("bad vote value = %d, want 400", code)
	}

	var page struct {
		Posts []struct {
			ID         uint64     `json:"id"`
			Points     int64      `json:"points"`
			VoteStatus vote.Value `json:"vote_status"`
			Author     *user.Summary
		} `json:"posts"`
		TotalCount int64 `json:"total_count"`
	}
	if code := c.do(http.MethodGet, "/posts", "", &page); code != http.StatusOK {
		t.Fatalf("feed = %d", code)
	}
	if len(page.Posts) != 1 || page.Posts[0].VoteStatus != vote.Up || page.Posts[0].Points != 1 || page.TotalCount != 1 {
		t.Fatalf("feed = %+v", page)
	}

	// the limit is 3 votes per window and two were spent above
	c.do(http.MethodPost, votePath, `{"value":-1}`, nil)
	if code := c.do(http.MethodPost, votePath, `{"value":1}`, nil); code != http.StatusTooManyRequests {
		t.Fatalf("4th vote = %d, want 429", code)
	}

	if code := c.do(http.MethodDelete, fmt.Sprintf("/posts/%d", created.ID), "", nil); code != http.StatusOK {
		t.Fatalf("delete = %d", code)
	}
	if code := c.do(http.MethodPost, "/auth/logout", "", nil); code != http.StatusOK {
		t.Fatalf("logout = %d", code)
	}
	if code := c.do(http.MethodGet, "/me", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d, want 401", code)
	}
	c.token = ""
	if code := c.do(http.MethodGet, "/posts", "", nil); code != http.StatusOK {
		t.Fatalf("anonymous feed = %d", code)
	}
}

func TestHealthz(t *testing.T) {
	a, _ := testApp(t)
	c := &client{t: t, h: a.routes()}
	if code := c.do(http.MethodGet, "/healthz", "", nil); code != http.StatusOK {
		t.Fatalf("healthz = %d", code)
	}
}

func TestCORS(t *testing.T) {
	a, _ := testApp(t)
	h := a.routes()
	origin := a.cfg.ClientOrigin

	tests := []struct {
		name      string
		origin    string
		wantAllow string
	}{
		{"client origin", origin, origin},
		{"foreign origin", "https://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/posts/1/vote", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code >= 300 {
				t.Fatalf("preflight status = %d", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Fatalf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if tt.wantAllow != "" && rec.Header().Get("Access-Control-Allow-Credentials") != "true" {
				t.Fatal("credentials not allowed")
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.Header.Set("Origin", origin)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("Access-Control-Allow-Origin") != origin {
		t.Fatalf("simple request = %d, Allow-Origin %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
