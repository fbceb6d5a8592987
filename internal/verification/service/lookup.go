package service

import (
	"context"
	"errors"

	"voxid/internal/verification/models"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/audit"
	"voxid/pkg/platform/sentinel"
	"voxid/pkg/requestcontext"
)

// Get returns the record of accountID or a not-found domain error.
func (s *Service) Get(ctx context.Context, accountID string) (*models.Record, error) {
	rec, err := s.records.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "verification record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get verification record")
	}
	return rec, nil
}

// TokenMetadata projects the record of accountID. An unknown account is not an
// error: it yields the unverified projection.
func (s *Service) TokenMetadata(ctx context.Context, accountID string) (models.TokenMetadata, error) {
	rec, err := s.records.Get(ctx, accountID)
	switch {
	case err == nil:
		return models.TokenMetadataFor(rec), nil
	case errors.Is(err, sentinel.ErrNotFound):
		return models.TokenMetadataFor(nil), nil
	default:
		return models.TokenMetadata{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get verification record")
	}
}

// Clear removes every record. Fingerprints are kept, so evidence spent before
// the clear stays spent.
func (s *Service) Clear(ctx context.Context) (int, error) {
	unlock := s.locks.LockAll()
	defer unlock()

	count, err := s.records.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count verification records")
	}
	if err := s.records.Clear(ctx); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear verification records")
	}
	if s.metrics != nil {
		s.metrics.SetRecords(0)
	}

	s.logger.WarnContext(ctx, "verification records cleared",
		"count", count,
		"actor", requestcontext.AdminActor(ctx),
		"request_id", requestID(ctx),
	)
	s.emitAudit(ctx, nil, audit.Event{
		Action: string(audit.EventRecordsCleared),
		Actor:  requestcontext.AdminActor(ctx),
		Reason: "admin_clear",
	})
	return count, nil
}

// SyncRecordGauge sets the records gauge from the store. Called at startup so
// durable backends report their existing rows.
func (s *Service) SyncRecordGauge(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	n, err := s.records.Count(ctx)
	if err != nil {
		return err
	}
	s.metrics.SetRecords(n)
	return nil
}
