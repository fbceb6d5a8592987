package models

import (
	"time"
)

// EvidenceKind identifies the class of a submitted evidence item.
type EvidenceKind string

const (
	EvidencePrimaryDocument   EvidenceKind = "primary_identity_document"
	EvidenceSecondaryDocument EvidenceKind = "secondary_identity_document"
	EvidenceVoiceSample       EvidenceKind = "voice_sample"
)

// EvidenceOrder is the fixed order in which an intake processes its items.
var EvidenceOrder = []EvidenceKind{
	EvidencePrimaryDocument,
	EvidenceSecondaryDocument,
	EvidenceVoiceSample,
}

func (k EvidenceKind) String() string { return string(k) }

// IsValid reports whether k is one of the known evidence kinds.
func (k EvidenceKind) IsValid() bool {
	switch k {
	case EvidencePrimaryDocument, EvidenceSecondaryDocument, EvidenceVoiceSample:
		return true
	}
	return false
}

// Fingerprinted reports whether evidence of this kind participates in deduplication.
// Voice samples are never fingerprinted.
func (k EvidenceKind) Fingerprinted() bool {
	return k == EvidencePrimaryDocument || k == EvidenceSecondaryDocument
}

// Status is the lifecycle state of a verification record.
// Intake only produces StatusVerified; the others are reserved.
type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusRejected Status = "rejected"
)

// Evidence is the raw material supplied to one intake, at most one item per kind.
type Evidence map[EvidenceKind][]byte

// Kinds returns the supplied kinds in processing order.
func (e Evidence) Kinds() []EvidenceKind {
	kinds := make([]EvidenceKind, 0, len(e))
	for _, k := range EvidenceOrder {
		if _, ok := e[k]; ok {
			kinds = append(kinds, k)
		}
	}
	return kinds
}

// Record is the verified-identity record for one external account.
type Record struct {
	AccountID      string
	VerificationID VerificationID
	IsVerified     bool
	Demographics   Demographics
	Status         Status
	Score          int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewVerifiedRecord builds the record persisted at the end of a successful intake.
// Timestamps are truncated to microseconds, the resolution of TIMESTAMPTZ, so the
// returned record equals the one read back from any backend.
func NewVerifiedRecord(accountID string, id VerificationID, demographics Demographics, score int, now time.Time) *Record {
	now = now.Truncate(time.Microsecond)
	return &Record{
		AccountID:      accountID,
		VerificationID: id,
		IsVerified:     true,
		Demographics:   demographics.WithDefaults(),
		Status:         StatusVerified,
		Score:          score,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Summary is the filter projection of a record.
type Summary struct {
	AccountID    string
	Demographics Demographics
	Score        int
}

// Summarize returns the filter projection of r.
func (r Record) Summarize() Summary {
	return Summary{AccountID: r.AccountID, Demographics: r.Demographics, Score: r.Score}
}
