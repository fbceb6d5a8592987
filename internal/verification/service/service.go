// Package service implements the verification intake pipeline and record lookups.
//
// An intake runs extraction outside any lock, then takes a striped lock over
// the account and every evidence fingerprint before re-checking the account,
// reserving fingerprints, scoring and persisting. The stores stay atomic on
// their own, so several processes sharing a durable backend remain correct.
package service

import (
	"log/slog"

	"voxid/internal/verification/metrics"
	"voxid/internal/verification/models"
	"voxid/internal/verification/tracer"
	vsync "voxid/pkg/platform/sync"
)

type Service struct {
	records      RecordStore
	fingerprints FingerprintStore
	extractor    Extractor
	locks        *vsync.ShardedMutex

	logger         *slog.Logger
	metrics        *metrics.Metrics
	tracer         tracer.Tracer
	auditPublisher AuditPublisher
	newID          func() models.VerificationID
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithIDGenerator replaces the verification id source. Tests use it to pin ids.
func WithIDGenerator(fn func() models.VerificationID) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

func New(records RecordStore, fingerprints FingerprintStore, ext Extractor, opts ...Option) *Service {
	svc := &Service{
		records:      records,
		fingerprints: fingerprints,
		extractor:    ext,
		locks:        vsync.NewShardedMutex(),
		newID:        models.NewVerificationID,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tracer == nil {
		svc.tracer = tracer.NewNoop()
	}
	return svc
}
