// Package cache is the read-through/write-through Cache Layer in front of
// the record store.
//
// A Layer talks to a Backend: MemoryBackend for a single process,
// RedisBackend for a shared cache, either optionally wrapped in a
// GuardedBackend that stops calling a failing backend for a while.
// Backend failures never fail a read: the Layer falls back to the store and
// returns the result uncached. Writes go to the store first and are cached
// only after they persisted.
package cache
