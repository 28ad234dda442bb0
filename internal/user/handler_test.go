package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harry-2401/reddit/internal/session"
	"github.com/harry-2401/reddit/internal/shared/httpx"
	"github.com/harry-2401/reddit/internal/shared/jwt"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMux(t *testing.T) *http.ServeMux {
	t.Helper()
	svc, _ := newService(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	sessions := session.NewManager(jwt.NewSigner("test-secret", time.Hour), rdb)
	h := NewHandler(svc, sessions)

	auth := httpx.AuthMiddleware(sessions)
	mux := http.NewServeMux()
	mux.Handle("POST /auth/register", httpx.Wrap(h.Register))
	mux.Handle("POST /auth/login", httpx.Wrap(h.Login))
	mux.Handle("POST /auth/logout", httpx.Chain(httpx.Wrap(h.Logout), auth))
	mux.Handle("GET /me", httpx.Chain(httpx.Wrap(h.Me), auth))
	return mux
}

func do(mux http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequestWithContext(context.Background(), method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestSessionLifecycle(t *testing.T) {
	mux := newMux(t)

	rec := do(mux, http.MethodPost, "/auth/register", "", `{"username":"hank","email":"hank@example.com","password":"secret"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d body=%s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), "pass_hash") || strings.Contains(rec.Body.String(), "PassHash") {
		t.Fatalf("password hash leaked: %s", rec.Body)
	}

	rec = do(mux, http.MethodPost, "/auth/login", "", `{"username_or_email":"hank","password":"secret"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body)
	}
	var out struct {
		Session session.Token `json:"session"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	tok := out.Session.AccessToken

	rec = do(mux, http.MethodGet, "/me", tok, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"username":"hank"`) {
		t.Fatalf("me = %d %s", rec.Code, rec.Body)
	}

	if rec = do(mux, http.MethodPost, "/auth/logout", tok, ""); rec.Code != http.StatusOK {
		t.Fatalf("logout status = %d body=%s", rec.Code, rec.Body)
	}
	if rec = do(mux, http.MethodGet, "/me", tok, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d, want 401", rec.Code)
	}
}

func TestRegisterErrorsAreFieldLevel(t *testing.T) {
	mux := newMux(t)
	rec := do(mux, http.MethodPost, "/auth/register", "", `{"username":"a@","email":"nope","password":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	var body httpx.APIError
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if len(body.Fields) < 3 {
		t.Fatalf("fields = %+v, want username, email and password", body.Fields)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	mux := newMux(t)
	do(mux, http.MethodPost, "/auth/register", "", `{"username":"ivan","email":"ivan@example.com","password":"secret"}`)
	rec := do(mux, http.MethodPost, "/auth/login", "", `{"username_or_email":"ivan@example.com","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
