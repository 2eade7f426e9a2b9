package livemetro

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// liveTier adapts a single upstream call into a Tier with a tier-local
// timeout. The chain never waits longer than the timeout before moving
// on to the next tier.
type liveTier[T any] struct {
	name    string
	fetch   func(ctx context.Context, key string) (*T, error)
	timeout time.Duration
}

func newLiveTier[T any](name string, timeout time.Duration, fetch func(ctx context.Context, key string) (*T, error)) Tier[T] {
	return &liveTier[T]{
		name:    name,
		fetch:   fetch,
		timeout: timeout,
	}
}

func (t *liveTier[T]) Name() string {
	return t.name
}

func (t *liveTier[T]) Fetch(ctx context.Context, key string) (*T, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	v, err := t.fetch(ctx, key)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return v, nil
}
