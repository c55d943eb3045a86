// Package store provides the in-memory key-value store shared by every request.
//
// # Architecture
//
// Store is a sharded map. Each key is hashed with xxhash to pick one of a fixed
// number of shards, and each shard carries its own sync.RWMutex. Readers and
// writers of keys that land in different shards never contend, so a slow writer
// to one key does not block a reader of another.
//
// # Semantics
//
//   - Set upserts a batch. Every individual key assignment is atomic, the batch
//     as a whole is not: two concurrent batches may interleave per key.
//   - Concurrent writers to the same key produce one arbitrary winner
//     (last write wins, no versioning).
//   - Get returns the current value and whether the key exists.
//   - Remove deletes a key; removing an absent key is a no-op.
//
// There is deliberately no iteration, size, or snapshot API.
//
// # Usage
//
//	s := store.New()
//	s.Set(map[string]string{"x": "y"})
//	v, ok := s.Get("x")
//	s.Remove("x")
package store
