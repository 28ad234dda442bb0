package post

import (
	"net/http"

	"github.com/harry-2401/reddit/internal/shared/httpx"
)

type Handler struct{ svc Service }

func NewHandler(s Service) *Handler { return &Handler{svc: s} }

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	in, err := httpx.Decode[CreateReq](r)
	if err != nil {
		return err
	}
	p, err := h.svc.Create(r.Context(), uid, in)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, NewView(*p), http.StatusCreated)
	return nil
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	id, err := httpx.PathID(r, "post_id")
	if err != nil {
		return err
	}
	in, err := httpx.Decode[UpdateReq](r)
	if err != nil {
		return err
	}
	p, err := h.svc.Update(r.Context(), id, uid, in)
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, NewView(*p), http.StatusOK)
	return nil
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) error {
	uid, err := httpx.UserFromCtx(r)
	if err != nil {
		return err
	}
	id, err := httpx.PathID(r, "post_id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(r.Context(), id, uid); err != nil {
		return err
	}
	httpx.WriteJSON(w, map[string]any{"post_id": id, "deleted": true}, http.StatusOK)
	return nil
}
