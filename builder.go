package livemetro

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/k002bill2/livemetro/store"
)

const (
	realtimeNamespace = "rt:"
	stationNamespace  = "st:"

	replicaRealtimePrefix = "livemetro:rt:"
	replicaStationPrefix  = "livemetro:st:"
)

// Builder assembles an Engine. Defaults: in-memory persistence, 30s
// realtime TTL, 24h station TTL, no replica, no logging.
type Builder struct {
	live        LiveSource
	stations    StationSource
	replica     redis.Cmdable
	backend     store.Backend
	logger      zerolog.Logger
	realtimeTTL time.Duration
	stationTTL  time.Duration
	liveTimeout time.Duration
	cacheSize   int
}

func NewEngineBuilder(live LiveSource) *Builder {
	return &Builder{
		live:        live,
		logger:      zerolog.Nop(),
		realtimeTTL: DefaultRealtimeTTL,
		stationTTL:  DefaultStationTTL,
		liveTimeout: DefaultLiveTimeout,
		cacheSize:   store.DefaultMaxEntries,
	}
}

// WithStationSource enables the live tier for station metadata lookups.
// Without it, station reads are served by the replica and the cache only.
func (b *Builder) WithStationSource(src StationSource) *Builder {
	b.stations = src

	return b
}

// WithReplica enables the secondary replica tier and write-back on the
// given redis client.
func (b *Builder) WithReplica(client redis.Cmdable) *Builder {
	b.replica = client

	return b
}

// WithBackend sets the persistence layer under the local cache. Defaults
// to an in-memory backend.
func (b *Builder) WithBackend(backend store.Backend) *Builder {
	b.backend = backend

	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger

	return b
}

func (b *Builder) WithRealtimeTTL(ttl time.Duration) *Builder {
	b.realtimeTTL = ttl

	return b
}

func (b *Builder) WithStationTTL(ttl time.Duration) *Builder {
	b.stationTTL = ttl

	return b
}

// WithLiveTimeout bounds how long the chain waits on the live tier
// before falling through to the replica.
func (b *Builder) WithLiveTimeout(timeout time.Duration) *Builder {
	b.liveTimeout = timeout

	return b
}

// WithCacheSize bounds the number of keys each local store may hold.
func (b *Builder) WithCacheSize(size int) *Builder {
	b.cacheSize = size

	return b
}

func (b *Builder) Build() (*Engine, error) {
	if b.live == nil {
		return nil, errors.New("live source is required")
	}

	backend := b.backend
	if backend == nil {
		backend = store.NewMemoryBackend()
	}

	trainStore := store.New[RealtimeTrainData](backend, b.cacheSize, realtimeNamespace, b.logger)
	stationStore := store.New[Station](backend, b.cacheSize, stationNamespace, b.logger)

	queue := NewSyncQueue(b.logger)
	health := NewHealthTracker(b.live.Ping, queue.Pending)
	queue.OnError(health.RecordTaskError)

	trains := b.buildTrainCoordinator(trainStore, queue, health)
	stations := b.buildStationCoordinator(stationStore, queue, health)

	engine := &Engine{
		trains:       trains,
		stations:     stations,
		queue:        queue,
		health:       health,
		trainStore:   trainStore,
		stationStore: stationStore,
		log:          b.logger,
	}
	engine.subs = NewSubscriptionManager(engine.trains.Fetch, b.logger)

	return engine, nil
}

func (b *Builder) buildTrainCoordinator(
	st *store.Store[RealtimeTrainData],
	queue *SyncQueue,
	health *HealthTracker,
) *Coordinator[RealtimeTrainData] {
	tiers := []Tier[RealtimeTrainData]{
		newLiveTier(TierLive, b.liveTimeout, func(ctx context.Context, key string) (*RealtimeTrainData, error) {
			trains, err := b.live.FetchArrivals(ctx, key)
			if err != nil {
				return nil, err
			}

			return &RealtimeTrainData{
				StationName: key,
				Trains:      trains,
				UpdatedAt:   time.Now(),
				Source:      TierLive,
			}, nil
		}),
	}

	var replica *replicaTier[RealtimeTrainData]
	if b.replica != nil {
		replica = newReplicaTier[RealtimeTrainData](b.replica, replicaRealtimePrefix, b.realtimeTTL)
		tiers = append(tiers, replica)
	}
	tiers = append(tiers, newCacheTier(st))

	chain := NewChain(tiers...).WithValidator(func(d *RealtimeTrainData) error {
		if d.StationName == "" {
			return errors.New("missing station name")
		}
		return nil
	})

	c := newCoordinator(chain, st, queue, health, b.realtimeTTL)
	if replica != nil {
		c.writeBack = replica.Put
	}
	c.markStale = func(d *RealtimeTrainData) {
		d.Stale = true
		d.Source = TierCache
	}

	return c
}

func (b *Builder) buildStationCoordinator(
	st *store.Store[Station],
	queue *SyncQueue,
	health *HealthTracker,
) *Coordinator[Station] {
	var tiers []Tier[Station]

	if b.stations != nil {
		tiers = append(tiers, newLiveTier(TierLive, b.liveTimeout, func(ctx context.Context, key string) (*Station, error) {
			return b.stations.FetchStation(ctx, key)
		}))
	}

	var replica *replicaTier[Station]
	if b.replica != nil {
		replica = newReplicaTier[Station](b.replica, replicaStationPrefix, b.stationTTL)
		tiers = append(tiers, replica)
	}
	tiers = append(tiers, newCacheTier(st))

	chain := NewChain(tiers...).WithValidator(func(s *Station) error {
		if s.Name == "" {
			return errors.New("missing station name")
		}
		return nil
	})

	c := newCoordinator(chain, st, queue, health, b.stationTTL)
	if replica != nil {
		c.writeBack = replica.Put
	}

	return c
}
