package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voxid/internal/verification/extractor"
	"voxid/internal/verification/models"
	"voxid/internal/verification/scoring"
	"voxid/internal/verification/tracer"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/middleware/requesttime"
	"voxid/pkg/platform/sentinel"
	"voxid/pkg/validation"
)

const maxIDAttempts = 3

// Verify runs one intake for accountID. It returns the persisted record, or an
// *models.IntakeError naming the rejection, or a domain error for invalid input
// and infrastructure failures.
func (s *Service) Verify(ctx context.Context, accountID string, evidence models.Evidence) (rec *models.Record, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanIntake,
		tracer.String(tracer.AttrAccount, tracer.HashAccountID(accountID)),
		tracer.Int(tracer.AttrKinds, len(evidence)),
	)
	defer func() {
		s.observeIntake(ctx, span, accountID, rec, err)
		span.End(err)
	}()

	if !validation.IsAccountID(accountID) {
		return nil, dErrors.New(dErrors.CodeValidation, "accountId is invalid")
	}
	for kind := range evidence {
		if !kind.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported evidence kind %q", kind))
		}
	}

	if err := s.ensureUnverified(ctx, accountID); err != nil {
		return nil, err
	}
	if len(evidence) == 0 {
		return nil, models.NewInsufficientEvidence(0)
	}

	extractions, err := s.extractAll(ctx, evidence)
	if err != nil {
		return nil, err
	}

	digests, kindOf, err := fingerprints(extractions)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.LockKeys(lockKeys(accountID, digests)...)
	defer unlock()

	// A concurrent intake for the same account may have committed while we extracted.
	if err := s.ensureUnverified(ctx, accountID); err != nil {
		return nil, err
	}

	if err := s.reserve(ctx, digests, kindOf); err != nil {
		return nil, err
	}

	kinds := make([]models.EvidenceKind, 0, len(extractions))
	var demographics models.Demographics
	for _, ex := range extractions {
		kinds = append(kinds, ex.Kind)
		demographics = demographics.Merge(ex.Attributes)
	}

	score := scoring.Score(kinds)
	span.SetAttributes(tracer.Int(tracer.AttrScore, score))
	if !scoring.Passes(score) {
		return nil, models.NewInsufficientEvidence(score)
	}

	return s.persist(ctx, accountID, demographics, score)
}

// persist stores the verified record, drawing a new verificationId when the
// drawn one is already assigned.
func (s *Service) persist(ctx context.Context, accountID string, demographics models.Demographics, score int) (*models.Record, error) {
	now := requesttime.Now(ctx)
	for attempt := 1; ; attempt++ {
		rec := models.NewVerifiedRecord(accountID, s.newID(), demographics, score, now)
		err := s.records.Create(ctx, rec)
		switch {
		case err == nil:
			return rec, nil
		case errors.Is(err, sentinel.ErrAlreadyExists):
			return nil, models.NewAccountAlreadyVerified()
		case errors.Is(err, models.ErrVerificationIDTaken) && attempt < maxIDAttempts:
			continue
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist verification record")
		}
	}
}

// ensureUnverified rejects accounts that already have a record.
func (s *Service) ensureUnverified(ctx context.Context, accountID string) error {
	_, err := s.records.Get(ctx, accountID)
	switch {
	case err == nil:
		return models.NewAccountAlreadyVerified()
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up verification record")
	}
}

// extractAll reads each supplied item in processing order and stops at the first failure.
func (s *Service) extractAll(ctx context.Context, evidence models.Evidence) ([]extractor.Extraction, error) {
	kinds := evidence.Kinds()
	out := make([]extractor.Extraction, 0, len(kinds))
	for _, kind := range kinds {
		ex, err := s.extractOne(ctx, kind, evidence[kind])
		if err != nil {
			s.recordExtractionFailure(kind)
			s.logger.WarnContext(ctx, "evidence extraction failed",
				"kind", kind,
				"error", err,
				"request_id", requestID(ctx),
			)
			return nil, models.NewExtractionFailed(kind, err)
		}
		out = append(out, ex)
	}
	return out, nil
}

func (s *Service) extractOne(ctx context.Context, kind models.EvidenceKind, raw []byte) (ex extractor.Extraction, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanExtract, tracer.String(tracer.AttrEvidenceKind, kind.String()))
	defer func() { span.End(err) }()

	start := time.Now()
	ex, err = s.extractor.Extract(ctx, kind, raw)
	if s.metrics != nil {
		s.metrics.ObserveExtraction(kind.String(), time.Since(start).Seconds())
	}
	if err != nil {
		return extractor.Extraction{}, err
	}
	ex.Kind = kind
	return ex, nil
}

// fingerprints collects the digests of an intake. Two items with identical
// bytes are a duplicate within the intake and reject it on the later kind.
func fingerprints(extractions []extractor.Extraction) ([]string, map[string]models.EvidenceKind, error) {
	digests := make([]string, 0, len(extractions))
	kindOf := make(map[string]models.EvidenceKind, len(extractions))
	for _, ex := range extractions {
		if !ex.HasFingerprint() {
			continue
		}
		if _, seen := kindOf[ex.Fingerprint]; seen {
			return nil, nil, models.NewDuplicateEvidence(ex.Kind)
		}
		kindOf[ex.Fingerprint] = ex.Kind
		digests = append(digests, ex.Fingerprint)
	}
	return digests, kindOf, nil
}

func (s *Service) reserve(ctx context.Context, digests []string, kindOf map[string]models.EvidenceKind) (err error) {
	if len(digests) == 0 {
		return nil
	}
	ctx, span := s.tracer.Start(ctx, tracer.SpanReserve, tracer.Int(tracer.AttrKinds, len(digests)))
	defer func() { span.End(err) }()

	collided, err := s.fingerprints.Reserve(ctx, digests...)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve evidence fingerprints")
	}
	if collided != "" {
		kind := kindOf[collided]
		if s.metrics != nil {
			s.metrics.RecordFingerprintCollision(kind.String())
		}
		return models.NewDuplicateEvidence(kind)
	}
	span.AddEvent(tracer.EventFingerprintsTaken)
	return nil
}

func lockKeys(accountID string, digests []string) []string {
	keys := make([]string, 0, len(digests)+1)
	keys = append(keys, "account:"+accountID)
	for _, d := range digests {
		keys = append(keys, "fingerprint:"+d)
	}
	return keys
}
