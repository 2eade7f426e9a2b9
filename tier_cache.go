package livemetro

import (
	"context"

	"github.com/k002bill2/livemetro/store"
)

// cacheTier exposes the local store as the lowest tier of the chain.
// Reads respect expiry; the stale-if-error path goes through the store
// directly, not through this tier.
type cacheTier[T any] struct {
	store *store.Store[T]
}

func newCacheTier[T any](s *store.Store[T]) Tier[T] {
	return &cacheTier[T]{store: s}
}

func (t *cacheTier[T]) Name() string {
	return TierCache
}

func (t *cacheTier[T]) Fetch(ctx context.Context, key string) (*T, error) {
	v, ok := t.store.Get(ctx, key)
	if !ok {
		return nil, nil
	}

	return v, nil
}
