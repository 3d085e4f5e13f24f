package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"order-payment-service/events"
	"order-payment-service/kafka"
	"order-payment-service/models"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSNS struct {
	publishedArn string
	publishedMsg []byte
	err          error
}

func (m *mockSNS) Publish(ctx context.Context, topicArn string, message []byte) error {
	m.publishedArn = topicArn
	m.publishedMsg = append([]byte(nil), message...)
	return m.err
}

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func sampleEvent() models.OrderStatusChangedEvent {
	return models.OrderStatusChangedEvent{
		OrderNo:    "ORD-1",
		OrderType:  models.OrderTypeGeneral,
		From:       models.OrderStatusPending,
		To:         models.OrderStatusPaid,
		Amount:     100,
		OccurredAt: time.Now().UTC(),
	}
}

func TestPublishStatusChanged_FansOut(t *testing.T) {
	sns := &mockSNS{}
	w := &fakeWriter{}
	producer := kafka.NewProducerWithWriter(w, "order-events", zap.NewNop())
	pub := events.NewPublisher(sns, "arn:aws:sns:eu-west-2:000000000000:order-events", producer, zap.NewNop())

	require.NoError(t, pub.PublishStatusChanged(context.Background(), sampleEvent()))

	assert.Equal(t, "arn:aws:sns:eu-west-2:000000000000:order-events", sns.publishedArn)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(sns.publishedMsg, &out))
	assert.Equal(t, events.TypeOrderStatusChanged, out["type"])
	assert.Equal(t, "PAID", out["to"])

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ORD-1", string(w.msgs[0].Key))
}

func TestPublishStatusChanged_ReportsSinkFailure(t *testing.T) {
	sns := &mockSNS{err: errors.New("throttled")}
	w := &fakeWriter{}
	pub := events.NewPublisher(sns, "arn", kafka.NewProducerWithWriter(w, "t", zap.NewNop()), zap.NewNop())

	err := pub.PublishStatusChanged(context.Background(), sampleEvent())
	assert.Error(t, err)
	assert.Len(t, w.msgs, 1, "kafka still receives the event")
}

func TestPublishStatusChanged_NoSinks(t *testing.T) {
	pub := events.NewPublisher(nil, "", nil, zap.NewNop())
	assert.NoError(t, pub.PublishStatusChanged(context.Background(), sampleEvent()))
}
