package models

import (
	"errors"
	"fmt"

	dErrors "voxid/pkg/domain-errors"
)

// Reason tags the four rejection outcomes of an intake.
type Reason string

const (
	ReasonAccountAlreadyVerified Reason = "account_already_verified"
	ReasonExtractionFailed       Reason = "extraction_failed"
	ReasonDuplicateEvidence      Reason = "duplicate_evidence"
	ReasonInsufficientEvidence   Reason = "insufficient_evidence"
)

// Sentinels for errors.Is matching on the rejection reason regardless of kind.
var (
	ErrAccountAlreadyVerified = &IntakeError{Reason: ReasonAccountAlreadyVerified}
	ErrExtractionFailed       = &IntakeError{Reason: ReasonExtractionFailed}
	ErrDuplicateEvidence      = &IntakeError{Reason: ReasonDuplicateEvidence}
	ErrInsufficientEvidence   = &IntakeError{Reason: ReasonInsufficientEvidence}
)

// ErrVerificationIDTaken is returned by record stores when a new record reuses
// the verificationId of an existing one.
var ErrVerificationIDTaken = errors.New("verification id already assigned")

// IntakeError is a typed rejection of an intake. Kind is set for extraction
// failures and duplicate evidence.
type IntakeError struct {
	Reason Reason
	Kind   EvidenceKind
	Err    error
}

func (e *IntakeError) Error() string {
	msg := string(e.Reason)
	if e.Kind != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Kind)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *IntakeError) Unwrap() error { return e.Err }

// Is matches any IntakeError with the same reason.
func (e *IntakeError) Is(target error) bool {
	var t *IntakeError
	if !errors.As(target, &t) {
		return false
	}
	return e.Reason == t.Reason
}

func NewAccountAlreadyVerified() *IntakeError {
	return &IntakeError{Reason: ReasonAccountAlreadyVerified}
}

func NewExtractionFailed(kind EvidenceKind, err error) *IntakeError {
	return &IntakeError{Reason: ReasonExtractionFailed, Kind: kind, Err: err}
}

func NewDuplicateEvidence(kind EvidenceKind) *IntakeError {
	return &IntakeError{Reason: ReasonDuplicateEvidence, Kind: kind}
}

func NewInsufficientEvidence(score int) *IntakeError {
	return &IntakeError{Reason: ReasonInsufficientEvidence, Err: fmt.Errorf("score %d below gate", score)}
}

// Code maps the rejection to its transport-agnostic domain code.
func (e *IntakeError) Code() dErrors.Code {
	switch e.Reason {
	case ReasonAccountAlreadyVerified, ReasonDuplicateEvidence:
		return dErrors.CodeConflict
	default:
		return dErrors.CodeUnprocessable
	}
}

// ToDomainError converts the rejection for the HTTP boundary.
func (e *IntakeError) ToDomainError() error {
	return dErrors.Wrap(e, e.Code(), e.Error())
}
