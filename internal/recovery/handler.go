package recovery

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

func (h *Handler) Forgot(w http.ResponseWriter, r *http.Request) error {
	body, err := httpx.Decode[ForgotReq](r)
	if err != nil {
		return err
	}
	if err := h.svc.ForgotPassword(r.Context(), body.Email); err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]any{"sent": true}, http.StatusOK)
	return nil
}

// Change sets the new password and logs the user in.
func (h *Handler) Change(w http.ResponseWriter, r *http.Request) error {
	body, err := httpx.Decode[ChangeReq](r)
	if err != nil {
		return err
	}
	u, err := h.svc.ChangePassword(r.Context(), body)
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
