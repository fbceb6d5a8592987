// Package fingerprint stores the digests of every accepted evidence item.
//
// The set is write-once: digests are never removed and never expire.
package fingerprint

import (
	"context"
	"sync"
)

// InMemoryStore keeps digests in a map guarded by a RWMutex.
type InMemoryStore struct {
	mu      sync.RWMutex
	digests map[string]struct{}
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{digests: make(map[string]struct{})}
}

func (s *InMemoryStore) Exists(_ context.Context, digest string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.digests[digest]
	return ok, nil
}

// Add inserts digest. Adding a present digest has no effect.
func (s *InMemoryStore) Add(_ context.Context, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digests[digest] = struct{}{}
	return nil
}

// Reserve inserts every digest or none. When any digest is already present it is
// returned as collided and the set is unchanged.
func (s *InMemoryStore) Reserve(_ context.Context, digests ...string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range digests {
		if _, ok := s.digests[d]; ok {
			return d, nil
		}
	}
	for _, d := range digests {
		s.digests[d] = struct{}{}
	}
	return "", nil
}

// Len reports the number of stored digests.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.digests)
}
