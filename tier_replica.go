package livemetro

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// replicaTier reads the secondary replica: a redis keyspace fed by this
// engine's write-back queue (and by other devices running the same app).
// Values are msgpack-encoded payloads.
type replicaTier[T any] struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func newReplicaTier[T any](client redis.Cmdable, prefix string, ttl time.Duration) *replicaTier[T] {
	return &replicaTier[T]{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (r *replicaTier[T]) Name() string {
	return TierReplica
}

func (r *replicaTier[T]) Fetch(ctx context.Context, key string) (*T, error) {
	cmd := r.client.Get(ctx, r.prefix+key)

	if cmd.Err() != nil {
		if errors.Is(cmd.Err(), redis.Nil) {
			return nil, nil
		}
		return nil, errors.WithStack(cmd.Err())
	}

	bts, err := cmd.Bytes()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var item T
	if err = msgpack.Unmarshal(bts, &item); err != nil {
		return nil, errors.WithStack(err)
	}

	return &item, nil
}

// Put propagates a fresh value down to the replica. Only the write-back
// queue calls this, never the read path.
func (r *replicaTier[T]) Put(ctx context.Context, key string, value *T) error {
	b, err := msgpack.Marshal(value)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(r.client.Set(ctx, r.prefix+key, b, r.ttl).Err())
}
