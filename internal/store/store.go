// ABOUTME: Sharded in-memory key-value store for kvgate
// ABOUTME: Per-shard RW locks keep unrelated keys from serializing on one mutex

package store

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultShardCount is the number of shards used by New.
const DefaultShardCount = 64

// Operation names reported to an Observer.
const (
	OpSet    = "set"
	OpGet    = "get"
	OpRemove = "remove"
)

// Observer is notified after each store operation. hit reports whether a get
// found the key; it is always true for set and remove.
type Observer interface {
	ObserveStoreOp(op string, hit bool)
}

// Option configures a Store.
type Option func(*Store)

// WithShardCount overrides the number of shards. Values below 1 are ignored.
func WithShardCount(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.shardCount = n
		}
	}
}

// WithObserver attaches an Observer to the store.
func WithObserver(o Observer) Option {
	return func(s *Store) {
		s.observer = o
	}
}

type shard struct {
	mu   sync.RWMutex
	data map[string]string
}

// Store is a concurrency-safe mapping from key to value.
// The zero value is not usable; create one with New.
type Store struct {
	shards     []*shard
	shardCount int
	observer   Observer
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{shardCount: DefaultShardCount}
	for _, opt := range opts {
		opt(s)
	}

	s.shards = make([]*shard, s.shardCount)
	for i := range s.shards {
		s.shards[i] = &shard{data: make(map[string]string)}
	}
	return s
}

func (s *Store) shardFor(key string) *shard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Set upserts every pair in entries. Each key is written under its own shard
// lock, so the batch is not atomic across keys.
func (s *Store) Set(entries map[string]string) {
	for k, v := range entries {
		sh := s.shardFor(k)
		sh.mu.Lock()
		sh.data[k] = v
		sh.mu.Unlock()
		s.observe(OpSet, true)
	}
}

// Get returns the value stored under key and whether it was present.
func (s *Store) Get(key string) (string, bool) {
	sh := s.shardFor(key)
	sh.mu.RLock()
	v, ok := sh.data[key]
	sh.mu.RUnlock()

	s.observe(OpGet, ok)
	return v, ok
}

// Remove deletes key. Removing a key that does not exist is a no-op.
func (s *Store) Remove(key string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	delete(sh.data, key)
	sh.mu.Unlock()

	s.observe(OpRemove, true)
}

func (s *Store) observe(op string, hit bool) {
	if s.observer != nil {
		s.observer.ObserveStoreOp(op, hit)
	}
}
