// Package record stores verification records keyed by account identifier.
package record

import (
	"context"
	"sync"

	"voxid/internal/verification/models"
	"voxid/pkg/platform/sentinel"
)

// InMemoryStore keeps records in a map guarded by a RWMutex. Records are copied
// on the way in and out so callers never share state with the store.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.Record
	ids     map[models.VerificationID]struct{}
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]models.Record),
		ids:     make(map[models.VerificationID]struct{}),
	}
}

// Create inserts rec. It fails with sentinel.ErrAlreadyExists if the account
// already has a record and with models.ErrVerificationIDTaken if another
// record carries the same verificationId.
func (s *InMemoryStore) Create(_ context.Context, rec *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.AccountID]; ok {
		return sentinel.ErrAlreadyExists
	}
	if _, ok := s.ids[rec.VerificationID]; ok {
		return models.ErrVerificationIDTaken
	}
	s.records[rec.AccountID] = clone(*rec)
	s.ids[rec.VerificationID] = struct{}{}
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, accountID string) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[accountID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := clone(rec)
	return &out, nil
}

// All returns a snapshot of every record in no particular order.
func (s *InMemoryStore) All(_ context.Context) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, clone(rec))
	}
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]models.Record)
	s.ids = make(map[models.VerificationID]struct{})
	return nil
}

func clone(rec models.Record) models.Record {
	if rec.Demographics.Age != nil {
		age := *rec.Demographics.Age
		rec.Demographics.Age = &age
	}
	return rec
}
