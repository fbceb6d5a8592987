package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks RecordStore,FingerprintStore,Extractor,AuditPublisher

import (
	"context"

	"voxid/internal/verification/extractor"
	"voxid/internal/verification/models"
	"voxid/pkg/platform/audit"
)

// RecordStore persists verification records.
// Error Contract: Create returns sentinel.ErrAlreadyExists for a known account;
// Get returns sentinel.ErrNotFound for an unknown one.
type RecordStore interface {
	Create(ctx context.Context, rec *models.Record) error
	Get(ctx context.Context, accountID string) (*models.Record, error)
	All(ctx context.Context) ([]models.Record, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// FingerprintStore is the write-once set of accepted evidence digests.
type FingerprintStore interface {
	// Reserve inserts every digest or none; a non-empty result names the
	// already-present digest that blocked the reservation.
	Reserve(ctx context.Context, digests ...string) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, kind models.EvidenceKind, raw []byte) (extractor.Extraction, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
