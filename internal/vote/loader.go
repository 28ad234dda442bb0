package vote

import (
	"context"

	"github.com/harry-2401/reddit/internal/loader"
)

// ViewerLoader answers "how did this viewer vote on post X" for one request.
// Lookups are batched and memoized; an anonymous viewer never reaches storage.
type ViewerLoader struct {
	l *loader.Loader[uint64, Value]
}

func NewViewerLoader(r Repository, viewer uint64) *ViewerLoader {
	if viewer == 0 {
		return &ViewerLoader{}
	}
	return &ViewerLoader{l: loader.New(func(ctx context.Context, postIDs []uint64) ([]Value, error) {
		byPost, err := r.ValuesFor(ctx, viewer, postIDs)
		if err != nil {
			return nil, err
		}
		out := make([]Value, len(postIDs))
		for i, id := range postIDs {
			out[i] = byPost[id]
		}
		return out, nil
	})}
}

// Enqueue announces posts that will be looked up later in the request so the
// first Load fetches all of them at once.
func (v *ViewerLoader) Enqueue(postIDs ...uint64) {
	if v.l != nil {
		v.l.Enqueue(postIDs...)
	}
}

func (v *ViewerLoader) Load(ctx context.Context, postID uint64) (Value, error) {
	if v.l == nil {
		return None, nil
	}
	return v.l.Load(ctx, postID)
}

func (v *ViewerLoader) LoadMany(ctx context.Context, postIDs []uint64) ([]Value, error) {
	if v.l == nil {
		return make([]Value, len(postIDs)), nil
	}
	return v.l.LoadMany(ctx, postIDs)
}
