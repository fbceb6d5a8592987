package service

import (
	"context"
	"errors"

	"voxid/internal/verification/metrics"
	"voxid/internal/verification/models"
	"voxid/internal/verification/tracer"
	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/audit"
	"voxid/pkg/requestcontext"
)

func requestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}

// observeIntake logs, counts and audits the outcome of one intake.
// Invalid input is neither counted nor audited.
func (s *Service) observeIntake(ctx context.Context, span tracer.Span, accountID string, rec *models.Record, err error) {
	if err == nil && rec != nil {
		span.SetAttributes(tracer.String(tracer.AttrOutcome, metrics.OutcomeVerified))
		if s.metrics != nil {
			s.metrics.RecordIntake(metrics.OutcomeVerified)
			s.metrics.RecordPersisted(rec.Score)
		}
		s.logger.InfoContext(ctx, "verification succeeded",
			"verification_id", rec.VerificationID,
			"score", rec.Score,
			"request_id", requestID(ctx),
		)
		s.emitAudit(ctx, span, audit.Event{
			AccountID:      accountID,
			Action:         string(audit.EventVerificationSucceeded),
			VerificationID: rec.VerificationID.String(),
		})
		return
	}

	var intakeErr *models.IntakeError
	if !errors.As(err, &intakeErr) {
		if isValidationError(err) {
			return
		}
		if s.metrics != nil {
			s.metrics.RecordIntake(metrics.OutcomeError)
		}
		s.logger.ErrorContext(ctx, "verification intake failed",
			"error", err,
			"request_id", requestID(ctx),
		)
		return
	}

	span.SetAttributes(tracer.String(tracer.AttrOutcome, string(intakeErr.Reason)))
	if s.metrics != nil {
		s.metrics.RecordIntake(string(intakeErr.Reason))
	}
	attrs := []any{"reason", intakeErr.Reason, "request_id", requestID(ctx)}
	if intakeErr.Kind != "" {
		attrs = append(attrs, "kind", intakeErr.Kind)
	}
	s.logger.InfoContext(ctx, "verification rejected", attrs...)

	reason := string(intakeErr.Reason)
	if intakeErr.Kind != "" {
		reason += ":" + intakeErr.Kind.String()
	}
	s.emitAudit(ctx, span, audit.Event{
		AccountID: accountID,
		Action:    string(audit.EventVerificationRejected),
		Reason:    reason,
	})
}

// emitAudit never fails the caller; publish errors are logged.
func (s *Service) emitAudit(ctx context.Context, span tracer.Span, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	event.RequestID = requestID(ctx)
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"action", event.Action,
			"error", err,
			"request_id", event.RequestID,
		)
		return
	}
	if span != nil {
		span.AddEvent(tracer.EventAuditEmitted, tracer.String("action", event.Action))
	}
}

func isValidationError(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeValidation)
}

func (s *Service) recordExtractionFailure(kind models.EvidenceKind) {
	if s.metrics != nil {
		s.metrics.RecordExtractionFailure(kind.String())
	}
}
