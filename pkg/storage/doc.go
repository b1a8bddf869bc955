// Package storage defines the persistence contracts for resources and
// resource groups, plus the shared storage configuration.
//
// The relational implementation lives in pkg/storage/postgres; a
// read-through caching decorator with write-through invalidation lives in
// pkg/storage/cache. Both satisfy ResourceStorage, so callers and the
// delete-cascade machinery are indifferent to whether a cache is layered
// in between.
//
// Mutating operations take a Querier so the caller controls the
// surrounding transaction boundary; reads without an explicit Querier
// acquire a pooled connection internally.
package storage
