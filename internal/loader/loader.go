// Package loader provides a request-scoped batching cache. A Loader is built
// for one request, collects the keys asked of it, resolves every key it has
// not seen yet with a single call to its BatchFunc and memoizes the results
// until it is dropped. Loaders must not be shared between requests.
package loader

import (
	"context"
	"fmt"
	"sync"
)

// BatchFunc resolves keys in one storage round trip. The returned slice must
// line up with keys: same length, same order.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, error)

type Loader[K comparable, V any] struct {
	fetch BatchFunc[K, V]

	mu      sync.Mutex
	cache   map[K]V
	pending []K
}

func New[K comparable, V any](fetch BatchFunc[K, V]) *Loader[K, V] {
	return &Loader[K, V]{fetch: fetch, cache: make(map[K]V)}
}

// Enqueue registers keys that will be needed later in the request. They are
// fetched together with the next Load or LoadMany that misses the cache.
func (l *Loader[K, V]) Enqueue(keys ...K) {
	l.mu.Lock()
	l.pending = append(l.pending, keys...)
	l.mu.Unlock()
}

func (l *Loader[K, V]) Load(ctx context.Context, key K) (V, error) {
	vs, err := l.LoadMany(ctx, []K{key})
	if err != nil {
		var zero V
		return zero, err
	}
	return vs[0], nil
}

// LoadMany returns one value per key in request order. Keys already cached are
// served from memory; the rest go out in one batch. Failed batches are not
// cached.
func (l *Loader[K, V]) LoadMany(ctx context.Context, keys []K) ([]V, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var missing []K
	queued := make(map[K]bool)
	for _, k := range keys {
		if _, ok := l.cache[k]; ok || queued[k] {
			continue
		}
		queued[k] = true
		missing = append(missing, k)
	}

	if len(missing) > 0 {
		// ride along with whatever was enqueued earlier in the request
		for _, k := range l.pending {
			if _, ok := l.cache[k]; ok || queued[k] {
				continue
			}
			queued[k] = true
			missing = append(missing, k)
		}

		vals, err := l.fetch(ctx, missing)
		if err != nil {
			return nil, err
		}
		if len(vals) != len(missing) {
			return nil, fmt.Errorf("loader: batch returned %d values for %d keys", len(vals), len(missing))
		}
		for i, k := range missing {
			l.cache[k] = vals[i]
		}
		l.pending = l.pending[:0]
	}

	out := make([]V, len(keys))
	for i, k := range keys {
		out[i] = l.cache[k]
	}
	return out, nil
}
