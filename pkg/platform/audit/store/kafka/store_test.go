package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxid/internal/platform/kafka/producer"
	audit "voxid/pkg/platform/audit"
)

type captureProducer struct {
	msgs []*producer.Message
	err  error
}

func (c *captureProducer) Produce(_ context.Context, msg *producer.Message) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func TestStore_AppendPublishesKeyedJSON(t *testing.T) {
	p := &captureProducer{}
	st := New(p, "")
	event := audit.Event{
		Timestamp:      time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
		AccountID:      "0x01cf0e2f2f715450",
		Action:         string(audit.EventVerificationSucceeded),
		VerificationID: "VER_0123456789ABCDEF",
		RequestID:      "req-9",
	}

	require.NoError(t, st.Append(context.Background(), event))
	require.Len(t, p.msgs, 1)

	msg := p.msgs[0]
	assert.Equal(t, DefaultTopic, msg.Topic)
	assert.Equal(t, []byte("0x01cf0e2f2f715450"), msg.Key)
	assert.Equal(t, "req-9", msg.Headers["request_id"])
	assert.Equal(t, "verification_succeeded", msg.Headers["action"])

	var decoded audit.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event, decoded)
}

func TestStore_AdminEventsHaveNoKey(t *testing.T) {
	p := &captureProducer{}
	require.NoError(t, New(p, "custom.topic").Append(context.Background(), audit.Event{Action: string(audit.EventRecordsCleared)}))

	require.Len(t, p.msgs, 1)
	assert.Nil(t, p.msgs[0].Key)
	assert.Equal(t, "custom.topic", p.msgs[0].Topic)
}

func TestStore_ProduceError(t *testing.T) {
	brokerErr := errors.New("no brokers")
	err := New(&captureProducer{err: brokerErr}, "").Append(context.Background(), audit.Event{Action: "x"})
	assert.ErrorIs(t, err, brokerErr)
}
