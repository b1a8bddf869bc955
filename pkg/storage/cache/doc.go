// Package cache decorates the relational resource store with a Redis-backed
// read-through cache and write-through invalidation.
//
// Two key families exist per context: one full resource object per id, and
// one list of ids for the universal wildcard search. Any mutation of a
// resource drops both its own key and the list key, because any mutation
// can change membership of the "all resources" result. Values are stored as
// JSON and decoded into a fresh object on every hit, so callers never share
// a mutable instance with the cache.
//
// Invalidation failures propagate like store failures; a cache that cannot
// be invalidated is a correctness problem, not a performance one. Cache
// population failures are logged and ignored — the next read recomputes.
package cache
