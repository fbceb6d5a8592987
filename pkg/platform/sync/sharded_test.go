package sync

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShardedMutex_SameKeySerializes(t *testing.T) {
	m := NewShardedMutex()
	counter := 0
	var wg sync.WaitGroup

	for range 100 {
		wg.Go(func() {
			m.Lock("account:ACC1")
			defer m.Unlock("account:ACC1")
			counter++
		})
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestShardedMutex_ShardDistribution(t *testing.T) {
	m := NewShardedMutex()

	shards := make(map[int]bool)
	keys := []string{"account:ACC1", "account:ACC2", "fp:9f86d081", "fp:60303ae2", "account:0x01cf0e2f2f715450", "fp:fd61a03a"}
	for _, key := range keys {
		shards[m.shardFor(key)] = true
	}

	assert.GreaterOrEqual(t, len(shards), 3, "expected keys to distribute across multiple shards")
}

func TestShardedMutex_LockKeysDeduplicatesShards(t *testing.T) {
	m := NewShardedMutex()

	// The same key twice maps to one shard; locking it twice would self-deadlock.
	unlock := m.LockKeys("fp:abc", "fp:abc", "")
	unlock()

	shards := m.shardsFor([]string{"b", "a", "b", "a"})
	assert.Len(t, shards, 2)
	assert.IsNonDecreasing(t, shards)
}

// TestShardedMutex_LockKeysOverlapNoDeadlock exercises opposite acquisition orders.
// Invariant: callers locking overlapping key sets in any argument order always make progress.
func TestShardedMutex_LockKeysOverlapNoDeadlock(t *testing.T) {
	m := NewShardedMutex()
	done := make(chan struct{})

	go func() {
		var wg sync.WaitGroup
		for i := range 200 {
			wg.Go(func() {
				var unlock func()
				if i%2 == 0 {
					unlock = m.LockKeys("account:A", "fp:1", "fp:2")
				} else {
					unlock = m.LockKeys("fp:2", "fp:1", "account:B")
				}
				unlock()
			})
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LockKeys deadlocked")
	}
}

func TestShardedMutex_LockKeysExcludesSingleLock(t *testing.T) {
	m := NewShardedMutex()
	unlock := m.LockKeys("account:ACC1", "fp:1")

	acquired := make(chan struct{})
	go func() {
		m.Lock("account:ACC1")
		close(acquired)
		m.Unlock("account:ACC1")
	}()

	select {
	case <-acquired:
		t.Fatal("Lock succeeded while LockKeys held the shard")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	<-acquired
}

func TestHashString(t *testing.T) {
	assert.Equal(t, hashString("test"), hashString("test"))
	assert.NotEqual(t, hashString("test1"), hashString("test2"))
	assert.Equal(t, uint32(0), hashString(""))
}

// Invariant: LockAll excludes every key-level holder until released.
func TestShardedMutex_LockAllExcludesKeys(t *testing.T) {
	m := NewShardedMutex()
	unlock := m.LockAll()

	acquired := make(chan struct{})
	go func() {
		release := m.LockKeys("account:ACC1", "fp:abc")
		release()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("LockKeys succeeded while LockAll was held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("LockKeys did not proceed after LockAll was released")
	}
}
