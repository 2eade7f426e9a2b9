// Package livemetro implements the tiered data acquisition and caching
// engine behind a realtime metro arrivals application.
//
// A fetch for a station key walks an ordered chain of tiers: the live
// transit API first, then a network replica, then the local cache. The
// first tier that produces data wins. Successful reads are written to the
// local cache with a tier-specific TTL and propagated to the replica
// through a best-effort write-back queue. Concurrent fetches for the same
// key are collapsed into a single upstream round trip.
//
// The engine is constructed once via [NewEngineBuilder] and passed to
// consumers; there is no package-level state.
package livemetro
