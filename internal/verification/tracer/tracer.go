// Package tracer provides a lightweight tracing abstraction for the verification module.
//
// The interface does not depend on OpenTelemetry APIs directly, so the intake
// pipeline and extractors can emit spans while staying decoupled from the
// tracing backend.
//
// Implementations:
//   - NoopTracer: for tests
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span. A non-nil err marks the span as failed.
	// End must be called exactly once, typically via defer.
	End(err error)

	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span with the given name and attributes.
	//
	// Example:
	//   ctx, span := tracer.Start(ctx, tracer.SpanIntake,
	//       tracer.String(tracer.AttrAccount, tracer.HashAccountID(accountID)),
	//   )
	//   defer span.End(err)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// HashAccountID returns a shortened SHA-256 of the account identifier so traces
// can be correlated without exporting the raw identifier.
func HashAccountID(accountID string) string {
	if accountID == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(accountID))
	return hex.EncodeToString(hash[:8])
}

// Span names used by the verification module.
const (
	SpanIntake        = "verification.intake"
	SpanExtract       = "verification.extract"
	SpanReserve       = "verification.fingerprints.reserve"
	SpanClassifierAPI = "verification.classifier.call"
	SpanFilter        = "verification.query.filter"
	SpanStats         = "verification.query.stats"
)

// Attribute keys used by the verification module.
const (
	AttrAccount      = "account_hash"
	AttrEvidenceKind = "evidence.kind"
	AttrKinds        = "evidence.count"
	AttrScore        = "score"
	AttrOutcome      = "outcome"
	AttrCriteria     = "criteria.count"
	AttrMatches      = "matches"
	AttrStatusCode   = "http.status_code"
)

// Event names used by the verification module.
const (
	EventAuditEmitted      = "audit.emitted"
	EventFingerprintsTaken = "fingerprints.reserved"
)
