package store

import (
	"sync"

	"github.com/spaolacci/murmur3"
)

// shardedMultimap is a string-keyed multimap (key -> ordered list of
// event ids) split across N independently-locked shards. The shard for a
// key is chosen by hashing the key with murmur3, which mirrors the
// teacher's FNV-bucketed index-partition lookup but keeps the buckets
// in-process rather than routing to separate SQLite files.
//
// Splitting the lock lets concurrent queries against different keys
// (e.g. two different correlation ids) proceed without contending, even
// though the Coordinator still serializes all writers against each other.
type shardedMultimap struct {
	shards []multimapShard
	mask   uint32
}

type multimapShard struct {
	mu   sync.RWMutex
	data map[string][]string
}

// newShardedMultimap creates a sharded multimap with the given shard
// count, rounded up to the next power of two so the shard can be picked
// with a mask instead of a modulo.
func newShardedMultimap(shardCount int) *shardedMultimap {
	n := nextPowerOfTwo(shardCount)
	shards := make([]multimapShard, n)
	for i := range shards {
		shards[i].data = make(map[string][]string)
	}
	return &shardedMultimap{shards: shards, mask: uint32(n - 1)}
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (m *shardedMultimap) shardFor(key string) *multimapShard {
	h := murmur3.Sum32([]byte(key))
	return &m.shards[h&m.mask]
}

// Append adds id to the list for key, preserving append order.
func (m *shardedMultimap) Append(key, id string) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.data[key] = append(s.data[key], id)
	s.mu.Unlock()
}

// Remove deletes id from the list for key. It is a no-op if the id is
// not present.
func (m *shardedMultimap) Remove(key, id string) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.data[key]
	for i, existing := range ids {
		if existing == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.data, key)
	} else {
		s.data[key] = ids
	}
}

// Get returns a copy of the id list for key, in append order.
func (m *shardedMultimap) Get(key string) []string {
	s := m.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.data[key]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// Len returns the total number of (key, id) entries across all shards.
func (m *shardedMultimap) Len() int64 {
	var total int64
	for i := range m.shards {
		m.shards[i].mu.RLock()
		for _, ids := range m.shards[i].data {
			total += int64(len(ids))
		}
		m.shards[i].mu.RUnlock()
	}
	return total
}

// Clear empties every shard.
func (m *shardedMultimap) Clear() {
	for i := range m.shards {
		m.shards[i].mu.Lock()
		m.shards[i].data = make(map[string][]string)
		m.shards[i].mu.Unlock()
	}
}
