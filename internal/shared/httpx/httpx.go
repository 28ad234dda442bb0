package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/harry-2401/reddit/internal/shared/apperr"
)

type HandlerFunc func(http.ResponseWriter, *http.Request) error

type APIError struct {
	Error     string              `json:"error"`
	Reason    string              `json:"reason,omitempty"`
	Status    int                 `json:"status"`
	Retryable bool                `json:"retryable,omitempty"`
	Fields    []apperr.FieldError `json:"fields,omitempty"`
}

func WriteJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, err error, reason string) {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	body := APIError{Error: err.Error(), Reason: reason, Status: status, Retryable: apperr.Retryable(err)}
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		body.Fields = ve.Fields
	}
	WriteJSON(w, body, status)
}

// Status maps an error from the service layer onto an HTTP status and a
// stable machine-readable reason.
func Status(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperr.ErrInvalid):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, "retryable"
	case errors.Is(err, apperr.ErrInfrastructure):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

func Wrap(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			code, reason := Status(err)
			if code >= http.StatusInternalServerError {
				slog.ErrorContext(r.Context(), "request failed",
					"method", r.Method, "path", r.URL.Path, "status", code, "err", err)
				// infrastructure details stay in the log
				err = errors.New(http.StatusText(code))
			}
			WriteError(w, code, err, reason)
		}
	})
}

// Chain wraps h so that mws run in the order given, outermost first.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func Decode[T any](r *http.Request) (T, error) {
	var t T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&t); err != nil {
		return t, fmt.Errorf("%w: malformed body: %v", apperr.ErrInvalid, err)
	}
	return t, nil
}

func QueryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func PathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(r.PathValue(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad %s %q", apperr.ErrInvalid, name, r.PathValue(name))
	}
	return id, nil
}

func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

type ctxKey string

const (
	userKey  ctxKey = "httpx.user_id"
	tokenKey ctxKey = "httpx.token"
)

// Verifier resolves a bearer token to a user id.
type Verifier interface {
	Verify(ctx context.Context, token string) (uint64, error)
}

// AuthMiddleware rejects requests without a valid bearer token.
func AuthMiddleware(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := BearerToken(r)
			if tok == "" {
				WriteError(w, http.StatusUnauthorized, apperr.ErrUnauthorized, "missing_bearer")
				return
			}
			uid, err := v.Verify(r.Context(), tok)
			if errors.Is(err, apperr.ErrInfrastructure) {
				// the session may still be valid; the client must not drop it
				code, reason := Status(err)
				slog.ErrorContext(r.Context(), "verify token", "path", r.URL.Path, "err", err)
				WriteError(w, code, errors.New(http.StatusText(code)), reason)
				return
			}
			if err != nil || uid == 0 {
				WriteError(w, http.StatusUnauthorized, apperr.ErrUnauthorized, "invalid_token")
				return
			}
			next.ServeHTTP(w, r.WithContext(withToken(WithUser(r.Context(), uid), tok)))
		})
	}
}

// OptionalAuth lets anonymous requests through but still rejects a bad token.
func OptionalAuth(v Verifier) func(http.Handler) http.Handler {
	required := AuthMiddleware(v)
	return func(next http.Handler) http.Handler {
		authed := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if BearerToken(r) == "" {
				next.ServeHTTP(w, r)
				return
			}
			authed.ServeHTTP(w, r)
		})
	}
}

func WithUser(ctx context.Context, uid uint64) context.Context {
	return context.WithValue(ctx, userKey, uid)
}

func withToken(ctx context.Context, tok string) context.Context {
	return context.WithValue(ctx, tokenKey, tok)
}

func UserFromCtx(r *http.Request) (uint64, error) {
	uid := ViewerFromCtx(r)
	if uid == 0 {
		return 0, apperr.ErrUnauthorized
	}
	return uid, nil
}

// ViewerFromCtx returns the caller's id, or 0 for an anonymous caller.
func ViewerFromCtx(r *http.Request) uint64 {
	uid, _ := r.Context().Value(userKey).(uint64)
	return uid
}

func TokenFromCtx(r *http.Request) string {
	tok, _ := r.Context().Value(tokenKey).(string)
	return tok
}
