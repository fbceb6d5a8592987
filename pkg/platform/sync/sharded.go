package sync

import (
	"slices"
	"sync"
)

// ShardedMutex provides fine-grained locking using sharded mutexes.
// Operations are distributed across N shards based on a hash of the resource
// key, so unrelated keys rarely contend.
type ShardedMutex struct {
	shards [32]sync.Mutex
}

// NewShardedMutex creates a new ShardedMutex with 32 shards.
func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{}
}

// Lock acquires the lock for the given key's shard.
// Empty keys default to shard 0.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the lock for the given key's shard.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

// LockKeys acquires the shards of every key at once and returns the matching
// unlock function. Shards are deduplicated and taken in ascending order, so two
// callers with overlapping key sets cannot deadlock.
func (m *ShardedMutex) LockKeys(keys ...string) (unlock func()) {
	shards := m.shardsFor(keys)
	for _, s := range shards {
		m.shards[s].Lock()
	}
	return func() {
		for i := len(shards) - 1; i >= 0; i-- {
			m.shards[shards[i]].Unlock()
		}
	}
}

// LockAll acquires every shard in ascending order.
func (m *ShardedMutex) LockAll() (unlock func()) {
	for i := range m.shards {
		m.shards[i].Lock()
	}
	return func() {
		for i := len(m.shards) - 1; i >= 0; i-- {
			m.shards[i].Unlock()
		}
	}
}

func (m *ShardedMutex) shardsFor(keys []string) []int {
	shards := make([]int, 0, len(keys))
	for _, k := range keys {
		shards = append(shards, m.shardFor(k))
	}
	slices.Sort(shards)
	return slices.Compact(shards)
}

// shardFor returns the shard index for the given key.
func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	return int(hashString(key) % uint32(len(m.shards)))
}

// hashString provides a simple hash for shard selection.
func hashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}
