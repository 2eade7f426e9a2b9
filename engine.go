package livemetro

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/k002bill2/livemetro/store"
)

// Engine is the public surface of the tiered acquisition and caching
// core. Construct it with NewEngineBuilder and share the one instance;
// all methods are safe for concurrent use.
type Engine struct {
	trains       *Coordinator[RealtimeTrainData]
	stations     *Coordinator[Station]
	subs         *SubscriptionManager
	queue        *SyncQueue
	health       *HealthTracker
	trainStore   *store.Store[RealtimeTrainData]
	stationStore *store.Store[Station]
	log          zerolog.Logger
}

// GetRealtimeTrains performs a one-shot tiered fetch of the upcoming
// trains for a station. When every tier fails and no stale cache entry
// exists it returns (nil, nil): total unavailability is a result, not an
// error, so callers can render an explicit "unavailable" state.
func (e *Engine) GetRealtimeTrains(ctx context.Context, station string) (*RealtimeTrainData, error) {
	v, err := e.trains.Fetch(e.withLogger(ctx), station)
	if err != nil {
		if IsExhausted(err) {
			return nil, nil
		}
		return nil, err
	}

	return v, nil
}

// GetStationInfo performs a one-shot tiered fetch of station metadata,
// cached with the long station TTL. Same nil-on-unavailable contract as
// GetRealtimeTrains.
func (e *Engine) GetStationInfo(ctx context.Context, name string) (*Station, error) {
	v, err := e.stations.Fetch(e.withLogger(ctx), name)
	if err != nil {
		if IsExhausted(err) {
			return nil, nil
		}
		return nil, err
	}

	return v, nil
}

// SubscribeToRealtimeUpdates polls a station on the given interval,
// delivering each result (nil on total failure) to cb. The returned
// function cancels the subscription.
func (e *Engine) SubscribeToRealtimeUpdates(station string, cb func(*RealtimeTrainData), interval time.Duration) func() {
	return e.subs.Subscribe(station, interval, cb)
}

// SyncStatus returns the current observability snapshot.
func (e *Engine) SyncStatus() SyncStatus {
	return e.health.Status()
}

// ForceSync actively probes the live source and reports whether it is
// reachable, independent of any station fetch.
func (e *Engine) ForceSync(ctx context.Context) bool {
	return e.health.ForceSync(ctx)
}

// ClearCache wipes both local stores, e.g. on logout or storage quota
// pressure.
func (e *Engine) ClearCache(ctx context.Context) error {
	var result *multierror.Error

	if err := e.trainStore.Clear(ctx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := e.stationStore.Clear(ctx); err != nil {
		result = multierror.Append(result, err)
	}

	return result.ErrorOrNil()
}

// CacheInfo reports the persisted cache contents across both stores.
func (e *Engine) CacheInfo(ctx context.Context) store.CacheInfo {
	info := e.trainStore.Info(ctx)
	stations := e.stationStore.Info(ctx)

	info.TotalItems += stations.TotalItems
	info.TotalSize += stations.TotalSize
	info.Items = append(info.Items, stations.Items...)

	return info
}

// Close waits for pending write-back tasks to drain. Subscriptions are
// cancelled by their own cancel functions.
func (e *Engine) Close() {
	e.queue.Flush()
}

func (e *Engine) withLogger(ctx context.Context) context.Context {
	return e.log.WithContext(ctx)
}
