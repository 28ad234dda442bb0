package vote

import (
	"net/http"

	"github.com/harry-2401/reddit/internal/post"
	"github.com/harry-2401/reddit/internal/shared/httpx"
)

type Handler struct{ svc Service }

func NewHandler(s Service) *Handler { return &Handler{svc: s} }

func (h *Handler) Cast(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	pid, err := httpx.PathID(r, "post_id")
	if err != nil {
		return err
	}
	in, err := httpx.Decode[CastReq](r)
	if err != nil {
		return err
	}
	res, err := h.svc.Cast(r.Context(), pid, uid, in.Value)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]any{
		"post":        post.NewView(*res.Post),
		"vote_status": res.Value,
		"outcome":     res.Outcome,
	}, http.StatusOK)
	return nil
}
