package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/harry-2401/reddit/internal/feed"
	"github.com/harry-2401/reddit/internal/post"
	"github.com/harry-2401/reddit/internal/ratelimit"
	"github.com/harry-2401/reddit/internal/recovery"
	"github.com/harry-2401/reddit/internal/session"
	"github.com/harry-2401/reddit/internal/shared/httpx"
	"github.com/harry-2401/reddit/internal/shared/jwt"
	"github.com/harry-2401/reddit/internal/user"
	"github.com/harry-2401/reddit/internal/vote"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	shutdownTracing, err := initOTEL(ctx, cfg.OTEL)
	if err != nil {
		return err
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.AppPort,
		Handler:           otelhttp.NewHandler(a.routes(), "http.server"),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.AppPort)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(c)
}

func (a *app) routes() http.Handler {
	cfg := a.cfg
	sessions := session.NewManager(jwt.NewSigner(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), a.rdb)
	recoverySvc := recovery.NewService(a.users, a.rdb, a.events, cfg.Auth.ResetTTL, cfg.ClientOrigin)
	limiter := ratelimit.New(a.rdb)

	auth := httpx.AuthMiddleware(sessions)
	optional := httpx.OptionalAuth(sessions)
	voteLimit := limiter.Middleware("vote", cfg.RateLimit.Votes, cfg.RateLimit.Window, ratelimit.ByUser)
	authLimit := limiter.Middleware("auth", cfg.RateLimit.Auth, cfg.RateLimit.Window, ratelimit.ByIP)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("GET /healthz", httpx.Wrap(func(w http.ResponseWriter, r *http.Request) error {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.ready(ctx); err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, err, "not_ready")
			return nil
		}
		httpx.WriteJSON(w, map[string]any{"status": "ok"}, http.StatusOK)
		return nil
	}))

	protect := func(pattern string, h http.Handler, mws ...func(http.Handler) http.Handler) {
		mux.Handle(pattern, httpx.Chain(h, append([]func(http.Handler) http.Handler{auth}, mws...)...))
	}

	fh := feed.NewHandler(a.posts, a.votes, a.users)
	mux.Handle("GET /posts", httpx.Chain(httpx.Wrap(fh.List), optional))
	mux.Handle("GET /posts/{post_id}", httpx.Chain(httpx.Wrap(fh.Get), optional))

	ph := post.NewHandler(a.posts)
	protect("POST /posts", httpx.Wrap(ph.Create))
	protect("PATCH /posts/{post_id}", httpx.Wrap(ph.Update))
	protect("DELETE /posts/{post_id}", httpx.Wrap(ph.Delete))

	vh := vote.NewHandler(a.votes)
	protect("POST /posts/{post_id}/vote", httpx.Wrap(vh.Cast), voteLimit)

	uh := user.NewHandler(a.users, sessions)
	mux.Handle("POST /auth/register", httpx.Chain(httpx.Wrap(uh.Register), authLimit))
	mux.Handle("POST /auth/login", httpx.Chain(httpx.Wrap(uh.Login), authLimit))
	protect("POST /auth/logout", httpx.Wrap(uh.Logout))
	protect("GET /me", httpx.Wrap(uh.Me))

	rh := recovery.NewHandler(recoverySvc, sessions)
	mux.Handle("POST /auth/forgot-password", httpx.Chain(httpx.Wrap(rh.Forgot), authLimit))
	mux.Handle("POST /auth/change-password", httpx.Chain(httpx.Wrap(rh.Change), authLimit))

	return httpx.Chain(mux, corsFor(cfg.ClientOrigin))
}

// corsFor lets the web client at origin call the API with credentials.
// Preflight requests are answered here and never reach the mux.
func corsFor(origin string) func(http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   []string{origin},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           600,
	}).Handler
}
