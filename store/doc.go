// Package store provides the bounded, TTL-aware local cache under the
// livemetro engine. Entries live in an LRU-bounded in-memory index and
// are written through to a pluggable persistent [Backend]:
//
//   - [MemoryBackend]: process-local, lost on restart. The default.
//   - [SQLiteBackend]: durable key-value persistence via SQLite.
//
// The cache is a performance optimisation, never a correctness
// dependency: every backend failure degrades to a miss or a no-op.
package store
