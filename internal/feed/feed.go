// Package feed composes what a viewer sees: a page of posts, the viewer's own
// vote on each of them and each post's author. Votes and authors are resolved
// with one batched lookup each per request.
package feed

import (
	"context"
	"net/http"

	"github.com/harry-2401/reddit/internal/loader"
	"github.com/harry-2401/reddit/internal/metrics"
	"github.com/harry-2401/reddit/internal/post"
	"github.com/harry-2401/reddit/internal/shared/httpx"
	"github.com/harry-2401/reddit/internal/user"
	"github.com/harry-2401/reddit/internal/vote"
)

type Posts interface {
	ListPosts(ctx context.Context, limit int, cursor *post.Cursor) (*post.Page, error)
	Get(ctx context.Context, id uint64) (*post.Post, error)
}

type Votes interface {
	ViewerLoader(viewer uint64) *vote.ViewerLoader
}

type Authors interface {
	AuthorLoader() *loader.Loader[uint64, *user.Summary]
}

type Item struct {
	post.View
	VoteStatus vote.Value `json:"vote_status"`
	// Author is nil when the account no longer exists.
	Author *user.Summary `json:"author"`
}

type Page struct {
	Posts      []Item `json:"posts"`
	TotalCount int64  `json:"total_count"`
	Cursor     string `json:"cursor"`
	HasMore    bool   `json:"has_more"`
}

type Handler struct {
	posts   Posts
	votes   Votes
	authors Authors
}

func NewHandler(p Posts, v Votes, a Authors) *Handler {
	return &Handler{posts: p, votes: v, authors: a}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) error {
	cursor, err := post.ParseCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		return err
	}
	page, err := h.posts.ListPosts(r.Context(), httpx.QueryInt(r, "limit", post.MaxPageSize), cursor)
	if err != nil {
		return err
	}

	viewer := httpx.ViewerFromCtx(r)
	items, err := h.compose(r.Context(), viewer, page.Posts)
	if err != nil {
		return err
	}
	metrics.FeedPages.WithLabelValues(viewerKind(viewer)).Inc()

	httpx.WriteJSON(w, Page{
		Posts:      items,
		TotalCount: page.TotalCount,
		Cursor:     page.Cursor,
		HasMore:    page.HasMore,
	}, http.StatusOK)
	return nil
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) error {
	id, err := httpx.PathID(r, "post_id")
	if err != nil {
		return err
	}
	p, err := h.posts.Get(r.Context(), id)
	if err != nil {
		return err
	}
	items, err := h.compose(r.Context(), httpx.ViewerFromCtx(r), []post.Post{*p})
	if err != nil {
		return err
	}
	httpx.WriteJSON(w, items[0], http.StatusOK)
	return nil
}

// compose builds fresh loaders for this request only; nothing is cached
// across requests.
func (h *Handler) compose(ctx context.Context, viewer uint64, posts []post.Post) ([]Item, error) {
	items := make([]Item, len(posts))
	if len(posts) == 0 {
		return items, nil
	}

	postIDs := make([]uint64, len(posts))
	authorIDs := make([]uint64, len(posts))
	for i, p := range posts {
		postIDs[i], authorIDs[i] = p.ID, p.UserID
	}

	votes := h.votes.ViewerLoader(viewer)
	votes.Enqueue(postIDs...)
	statuses, err := votes.LoadMany(ctx, postIDs)
	if err != nil {
		return nil, err
	}
	authors, err := h.authors.AuthorLoader().LoadMany(ctx, authorIDs)
	if err != nil {
		return nil, err
	}

	for i, p := range posts {
		items[i] = Item{View: post.NewView(p), VoteStatus: statuses[i], Author: authors[i]}
	}
	return items, nil
}

func viewerKind(viewer uint64) string {
	if viewer == 0 {
		return "anonymous"
	}
	return "member"
}
