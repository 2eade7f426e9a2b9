package store

import "context"

// Backend is the persistence layer under the cache. Every method may
// fail; the Store treats a failing read as a miss and a failing write as
// a no-op.
type Backend interface {
	// GetItem returns the stored bytes for key, or (nil, nil) when absent.
	GetItem(ctx context.Context, key string) ([]byte, error)
	SetItem(ctx context.Context, key string, value []byte) error
	RemoveItem(ctx context.Context, key string) error
	// Keys returns every stored key, across all namespaces.
	Keys(ctx context.Context) ([]string, error)
	MultiRemove(ctx context.Context, keys []string) error
}
