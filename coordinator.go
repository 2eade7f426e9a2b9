package livemetro

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/k002bill2/livemetro/store"
)

// Coordinator is the single entry point for tiered reads of one payload
// type. Concurrent fetches for the same key collapse into one chain
// resolve; callers that arrive while a resolve is in flight share its
// result. It owns the cache-write, write-back, and health bookkeeping
// around each resolve. Fetches for different keys proceed independently.
type Coordinator[T any] struct {
	chain  *Chain[T]
	store  *store.Store[T]
	queue  *SyncQueue
	health *HealthTracker
	ttl    time.Duration

	// writeBack propagates a fresh live read to the replica; nil when no
	// replica is configured.
	writeBack func(ctx context.Context, key string, value *T) error

	// markStale flags a payload served by the stale-if-error path; nil
	// for payload types without freshness metadata.
	markStale func(*T)

	group singleflight.Group
}

func newCoordinator[T any](
	chain *Chain[T],
	st *store.Store[T],
	queue *SyncQueue,
	health *HealthTracker,
	ttl time.Duration,
) *Coordinator[T] {
	return &Coordinator[T]{
		chain:  chain,
		store:  st,
		queue:  queue,
		health: health,
		ttl:    ttl,
	}
}

// Fetch resolves key through the tier chain, deduplicating concurrent
// callers. On total failure it falls back to an expired cache entry
// before surfacing an *ExhaustedError.
func (c *Coordinator[T]) Fetch(ctx context.Context, key string) (*T, error) {
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.resolve(ctx, key)
	})

	if err != nil {
		return nil, err
	}

	return v.(*T), nil
}

func (c *Coordinator[T]) resolve(ctx context.Context, key string) (*T, error) {
	v, tierName, err := c.chain.Resolve(ctx, key)

	if err != nil {
		c.health.RecordOutcome("chain", false, err)

		// Stale-if-error: an expired entry beats no data at all.
		if stale, ok := c.store.GetStale(ctx, key); ok {
			if c.markStale != nil {
				c.markStale(stale)
			}
			return stale, nil
		}

		return nil, err
	}

	if tierName != TierCache {
		c.store.Set(ctx, key, v, c.ttl)

		if c.writeBack != nil && tierName == TierLive {
			value := v
			c.queue.Enqueue(SyncTask{
				Name: "replica write-back " + key,
				Run: func(taskCtx context.Context) error {
					return c.writeBack(taskCtx, key, value)
				},
			})
		}
	}

	c.health.RecordOutcome(tierName, true, nil)

	return v, nil
}
