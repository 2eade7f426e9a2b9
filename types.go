package livemetro

import (
	"context"
	"time"
)

// Tier names as reported by Chain.Resolve and recorded by the health
// tracker. The cache tier is special: a value served from it does not
// count as being online.
const (
	TierLive    = "live"
	TierReplica = "replica"
	TierCache   = "cache"
)

// Default knobs for the engine builder.
const (
	DefaultRealtimeTTL = 30 * time.Second
	DefaultStationTTL  = 24 * time.Hour
	DefaultLiveTimeout = 5 * time.Second
)

// TrainArrival is one upcoming train at a station.
type TrainArrival struct {
	TrainNo        string    `msgpack:"train_no" json:"trainNo"`
	LineName       string    `msgpack:"line_name" json:"lineName"`
	Destination    string    `msgpack:"destination" json:"destination"`
	Direction      string    `msgpack:"direction" json:"direction"`
	ETASeconds     int       `msgpack:"eta_seconds" json:"etaSeconds"`
	ArrivalMessage string    `msgpack:"arrival_message" json:"arrivalMessage"`
	UpdatedAt      time.Time `msgpack:"updated_at" json:"updatedAt"`
}

// RealtimeTrainData is the realtime payload for one station. An empty
// Trains slice is a valid result: no trains are approaching right now.
type RealtimeTrainData struct {
	StationName string         `msgpack:"station_name" json:"stationName"`
	Trains      []TrainArrival `msgpack:"trains" json:"trains"`
	UpdatedAt   time.Time      `msgpack:"updated_at" json:"updatedAt"`
	Source      string         `msgpack:"source" json:"source"`
	Stale       bool           `msgpack:"stale" json:"stale"`
}

// Station is long-lived station metadata. It changes rarely and is cached
// with a much longer TTL than realtime data.
type Station struct {
	ID           string   `msgpack:"id" json:"id"`
	Name         string   `msgpack:"name" json:"name"`
	Line         string   `msgpack:"line" json:"line"`
	ExternalCode string   `msgpack:"external_code" json:"externalCode"`
	Transfers    []string `msgpack:"transfers" json:"transfers"`
}

// Tier is one data source in the fallback chain. Fetch returns (nil, nil)
// when the tier has no data for the key; that is a miss, not a failure.
// Tiers own their internal timeout and retry policy.
type Tier[T any] interface {
	Name() string
	Fetch(ctx context.Context, key string) (*T, error)
}

// LiveSource is the primary upstream: the rate-limited realtime transit
// API. Ping probes connectivity without touching any station key.
type LiveSource interface {
	FetchArrivals(ctx context.Context, station string) ([]TrainArrival, error)
	Ping(ctx context.Context) error
}

// StationSource serves station metadata lookups from the upstream.
type StationSource interface {
	FetchStation(ctx context.Context, name string) (*Station, error)
}

// SyncError is one entry in the bounded recent-error log.
type SyncError struct {
	Tier    string
	Message string
	At      time.Time
}

// SyncStatus is a point-in-time observability snapshot of the engine.
type SyncStatus struct {
	LastSyncAt   time.Time
	IsOnline     bool
	PendingTasks int
	RecentErrors []SyncError
}
