// Package kafka publishes audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"voxid/internal/platform/kafka/producer"
	audit "voxid/pkg/platform/audit"
)

// DefaultTopic receives verification audit events.
const DefaultTopic = "verification.audit"

// Producer is the subset of the Kafka producer the sink needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Store writes each event as a JSON record keyed by account id, so events for
// one account land on one partition in order.
type Store struct {
	producer Producer
	topic    string
}

func New(p Producer, topic string) *Store {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Store{producer: p, topic: topic}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}

	msg := &producer.Message{
		Topic: s.topic,
		Value: value,
		Headers: map[string]string{
			"action": event.Action,
		},
	}
	if event.AccountID != "" {
		msg.Key = []byte(event.AccountID)
	}
	if event.RequestID != "" {
		msg.Headers["request_id"] = event.RequestID
	}

	if err := s.producer.Produce(ctx, msg); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}
