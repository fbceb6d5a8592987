package audit

import (
	"context"
	"errors"
	"time"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp      time.Time `json:"timestamp"`
	AccountID      string    `json:"account_id,omitempty"`
	Action         string    `json:"action"`
	Reason         string    `json:"reason,omitempty"`
	VerificationID string    `json:"verification_id,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	// Actor identifies the operator behind administrative actions.
	Actor string `json:"actor,omitempty"`
}

type AuditEvent string

const (
	EventVerificationSucceeded AuditEvent = "verification_succeeded"
	EventVerificationRejected  AuditEvent = "verification_rejected"
	EventRecordsCleared        AuditEvent = "records_cleared"
)

// Store persists audit events. Implementations must be safe for concurrent use.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Fanout appends every event to each of its stores and joins their errors.
type Fanout []Store

func (f Fanout) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
