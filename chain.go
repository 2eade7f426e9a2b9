package livemetro

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Chain is an ordered, static list of tiers. It holds no mutable state;
// the tier order is configuration decided at build time.
type Chain[T any] struct {
	tiers    []Tier[T]
	validate func(*T) error
}

func NewChain[T any](tiers ...Tier[T]) *Chain[T] {
	return &Chain[T]{tiers: tiers}
}

// WithValidator rejects malformed tier payloads. A payload that fails
// validation counts as a tier failure and is never cached.
func (c *Chain[T]) WithValidator(fn func(*T) error) *Chain[T] {
	c.validate = fn

	return c
}

// Resolve walks the tiers in priority order and returns the first hit
// together with the name of the tier that satisfied it. A tier error or
// a miss moves on to the next tier. When every tier misses or fails the
// returned error is an *ExhaustedError carrying the per-tier errors.
func (c *Chain[T]) Resolve(ctx context.Context, key string) (*T, string, error) {
	var tierErrs *multierror.Error

	for _, tier := range c.tiers {
		v, err := tier.Fetch(ctx, key)

		if err != nil {
			zerolog.Ctx(ctx).Debug().Str("tier", tier.Name()).Str("key", key).Err(err).Msg("tier fetch failed")
			tierErrs = multierror.Append(tierErrs, errors.Wrap(err, tier.Name()))
			continue
		}

		if v == nil {
			continue
		}

		if c.validate != nil {
			if verr := c.validate(v); verr != nil {
				tierErrs = multierror.Append(tierErrs, errors.Wrapf(verr, "%s: invalid payload", tier.Name()))
				continue
			}
		}

		return v, tier.Name(), nil
	}

	return nil, "", &ExhaustedError{Key: key, Err: tierErrs}
}
