package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultMaxEntries bounds the number of cached keys per store.
const DefaultMaxEntries = 100

// Entry is one cached value with its freshness window. Entries are
// replaced on refresh, never mutated in place.
type Entry[T any] struct {
	Value     T         `msgpack:"value"`
	StoredAt  time.Time `msgpack:"stored_at"`
	ExpiresAt time.Time `msgpack:"expires_at"`
}

func (e *Entry[T]) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// ItemInfo describes one cached entry for observability.
type ItemInfo struct {
	Key       string
	Size      int
	StoredAt  time.Time
	ExpiresAt time.Time
}

// CacheInfo is an administrative snapshot of a store's contents.
type CacheInfo struct {
	TotalItems int
	TotalSize  int
	Items      []ItemInfo
}

// Store is a bounded, TTL-aware cache of msgpack-serialisable values with
// write-through persistence to a Backend. Hot entries live in an LRU
// index; inserting past the bound evicts the least-recently-used key from
// both the index and the backend. Backend failures are swallowed and
// logged: a failing read is a miss, a failing write a no-op.
//
// An entry that expires is dropped from the LRU index on the next Get but
// its persisted copy is kept, so GetStale can still serve it when every
// live tier is down. Only capacity eviction, EvictExpired, and Clear
// remove persisted copies.
type Store[T any] struct {
	namespace  string
	maxEntries int
	backend    Backend
	log        zerolog.Logger
	now        func() time.Time

	mu  sync.Mutex
	lru *lru.Cache[string, *Entry[T]]
}

// New creates a Store whose backend keys are prefixed with namespace,
// allowing several stores to share one Backend.
func New[T any](backend Backend, maxEntries int, namespace string, log zerolog.Logger) *Store[T] {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	// Size errors only occur for non-positive sizes, checked above.
	index, _ := lru.New[string, *Entry[T]](maxEntries)

	return &Store[T]{
		namespace:  namespace,
		maxEntries: maxEntries,
		backend:    backend,
		log:        log,
		now:        time.Now,
		lru:        index,
	}
}

// Get returns the cached value for key when present and fresh. An expired
// entry is dropped from the in-memory index and reported as a miss. On an
// index miss the persisted copy is consulted and rehydrated if fresh.
func (s *Store[T]) Get(ctx context.Context, key string) (*T, bool) {
	now := s.now()

	s.mu.Lock()
	if ent, ok := s.lru.Get(key); ok {
		if !ent.Expired(now) {
			v := ent.Value
			s.mu.Unlock()
			return &v, true
		}

		// The persisted copy outlives in-memory expiry so stale reads
		// still work after all live tiers fail.
		s.lru.Remove(key)
		s.mu.Unlock()
		return nil, false
	}
	s.mu.Unlock()

	ent := s.load(ctx, key)
	if ent == nil || ent.Expired(now) {
		return nil, false
	}

	s.mu.Lock()
	evicted := s.addLocked(key, ent)
	s.mu.Unlock()
	s.removeBackend(ctx, evicted)

	v := ent.Value
	return &v, true
}

// GetStale returns the cached value for key ignoring expiry. Used as the
// last resort when the whole tier chain is exhausted.
func (s *Store[T]) GetStale(ctx context.Context, key string) (*T, bool) {
	s.mu.Lock()
	if ent, ok := s.lru.Peek(key); ok {
		v := ent.Value
		s.mu.Unlock()
		return &v, true
	}
	s.mu.Unlock()

	ent := s.load(ctx, key)
	if ent == nil {
		return nil, false
	}

	v := ent.Value
	return &v, true
}

// Set stores value under key with the given TTL, replacing any previous
// entry. The LRU bound is restored before Set returns.
func (s *Store[T]) Set(ctx context.Context, key string, value *T, ttl time.Duration) {
	now := s.now()
	ent := &Entry[T]{
		Value:     *value,
		StoredAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	s.mu.Lock()
	evicted := s.addLocked(key, ent)
	s.mu.Unlock()
	s.removeBackend(ctx, evicted)

	b, err := msgpack.Marshal(ent)
	if err != nil {
		s.log.Err(err).Str("key", key).Msg("cache entry encode failed")
		return
	}

	if err := s.backend.SetItem(ctx, s.bkey(key), b); err != nil {
		s.log.Err(err).Str("key", key).Msg("cache persist failed")
	}
}

// EvictExpired removes every expired entry from the index and the
// backend. Safe to call opportunistically or on a timer; note it also
// discards entries the stale-if-error path could otherwise serve.
func (s *Store[T]) EvictExpired(ctx context.Context) {
	now := s.now()
	var expired []string

	s.mu.Lock()
	for _, key := range s.lru.Keys() {
		if ent, ok := s.lru.Peek(key); ok && ent.Expired(now) {
			s.lru.Remove(key)
			expired = append(expired, key)
		}
	}
	s.mu.Unlock()

	for _, key := range expired {
		s.removeBackend(ctx, key)
	}

	// Sweep persisted copies that are no longer indexed.
	keys, err := s.backend.Keys(ctx)
	if err != nil {
		s.log.Err(err).Msg("cache sweep: listing keys failed")
		return
	}

	var stale []string
	for _, bk := range keys {
		key, ok := s.ownKey(bk)
		if !ok {
			continue
		}

		s.mu.Lock()
		_, indexed := s.lru.Peek(key)
		s.mu.Unlock()
		if indexed {
			continue
		}

		if ent := s.load(ctx, key); ent != nil && ent.Expired(now) {
			stale = append(stale, bk)
		}
	}

	if len(stale) > 0 {
		if err := s.backend.MultiRemove(ctx, stale); err != nil {
			s.log.Err(err).Msg("cache sweep: remove failed")
		}
	}
}

// Clear removes every entry belonging to this store's namespace.
func (s *Store[T]) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.lru.Purge()
	s.mu.Unlock()

	keys, err := s.backend.Keys(ctx)
	if err != nil {
		return err
	}

	var own []string
	for _, bk := range keys {
		if _, ok := s.ownKey(bk); ok {
			own = append(own, bk)
		}
	}

	return s.backend.MultiRemove(ctx, own)
}

// Info reports the persisted contents of this store's namespace. Backend
// failures degrade to an empty snapshot.
func (s *Store[T]) Info(ctx context.Context) CacheInfo {
	info := CacheInfo{}

	keys, err := s.backend.Keys(ctx)
	if err != nil {
		s.log.Err(err).Msg("cache info: listing keys failed")
		return info
	}

	for _, bk := range keys {
		key, ok := s.ownKey(bk)
		if !ok {
			continue
		}

		b, err := s.backend.GetItem(ctx, bk)
		if err != nil || b == nil {
			continue
		}

		item := ItemInfo{Key: key, Size: len(b)}

		var ent Entry[T]
		if err := msgpack.Unmarshal(b, &ent); err == nil {
			item.StoredAt = ent.StoredAt
			item.ExpiresAt = ent.ExpiresAt
		}

		info.Items = append(info.Items, item)
		info.TotalSize += item.Size
	}

	sort.Slice(info.Items, func(i, j int) bool { return info.Items[i].Key < info.Items[j].Key })
	info.TotalItems = len(info.Items)

	return info
}

// Len returns the number of keys currently in the in-memory index.
func (s *Store[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lru.Len()
}

// addLocked inserts ent and returns the key evicted to restore the
// bound, or "". Caller holds s.mu and removes the evicted backend copy
// after unlocking.
func (s *Store[T]) addLocked(key string, ent *Entry[T]) string {
	var evicted string
	if s.lru.Len() >= s.maxEntries && !s.lru.Contains(key) {
		if oldest, _, ok := s.lru.GetOldest(); ok {
			evicted = oldest
		}
	}

	s.lru.Add(key, ent)

	return evicted
}

func (s *Store[T]) load(ctx context.Context, key string) *Entry[T] {
	b, err := s.backend.GetItem(ctx, s.bkey(key))
	if err != nil {
		s.log.Err(err).Str("key", key).Msg("cache read failed")
		return nil
	}
	if b == nil {
		return nil
	}

	var ent Entry[T]
	if err := msgpack.Unmarshal(b, &ent); err != nil {
		s.log.Err(err).Str("key", key).Msg("cache entry decode failed")
		return nil
	}

	return &ent
}

func (s *Store[T]) removeBackend(ctx context.Context, key string) {
	if key == "" {
		return
	}

	if err := s.backend.RemoveItem(ctx, s.bkey(key)); err != nil {
		s.log.Err(err).Str("key", key).Msg("cache remove failed")
	}
}

func (s *Store[T]) bkey(key string) string {
	return s.namespace + key
}

func (s *Store[T]) ownKey(backendKey string) (string, bool) {
	if !strings.HasPrefix(backendKey, s.namespace) {
		return "", false
	}

	return strings.TrimPrefix(backendKey, s.namespace), true
}
