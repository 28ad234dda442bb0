package user

import (
	"net/http"

	"github.com/harry-2401/reddit/internal/session"
	"github.com/harry-2401/reddit/internal/shared/httpx"
)

type Handler struct {
	svc      Service
	sessions *session.Manager
}

func NewHandler(s Service, sessions *session.Manager) *Handler {
	return &Handler{svc: s, sessions: sessions}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) error {
	body, err := httpx.Decode[RegisterReq](r)
	if err != nil {
		return err
	}
	u, err := h.svc.Register(r.Context(), body)
	if err != nil {
		return err
	}
	tok, err := h.sessions.Issue(u.ID)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]any{"user": u, "session": tok}, http.StatusCreated)
	return nil
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) error {
	body, err := httpx.Decode[LoginReq](r)
	if err != nil {
		return err
	}
	u, err := h.svc.Login(r.Context(), body)
	if err != nil {
		return err
	}
	tok, err := h.sessions.Issue(u.ID)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]any{"user": u, "session": tok}, http.StatusOK)
	return nil
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	u, err := h.svc.Get(r.Context(), uid)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, u, http.StatusOK)
	return nil
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) error {
	if err := h.sessions.Revoke(r.Context(), httpx.TokenFromCtx(r)); err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]any{"logged_out": true}, http.StatusOK)
	return nil
}
