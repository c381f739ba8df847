package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Muthahireen/clairvoyant/internal/usecase"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	sent   []published
	err    error
	closed bool
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestPublishAnalysisCompleted(t *testing.T) {
	ch := &fakeChannel{}
	p := &Publisher{channel: ch, exchange: "clairvoyant.events", logger: zap.NewNop()}

	event := usecase.AnalysisCompleted{
		RequestID:    "req-1",
		UserID:       "user-1",
		Source:       "image",
		Label:        "Benign",
		Confidence:   0.98,
		ModelVersion: "stub-0",
		CreatedAt:    time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.PublishAnalysisCompleted(context.Background(), event))
	require.Len(t, ch.sent, 1)

	sent := ch.sent[0]
	assert.Equal(t, "clairvoyant.events", sent.exchange)
	assert.Equal(t, RoutingKeyAnalysisCompleted, sent.key)
	assert.Equal(t, amqp.Persistent, sent.msg.DeliveryMode)
	assert.Equal(t, "req-1", sent.msg.MessageId)

	var decoded usecase.AnalysisCompleted
	require.NoError(t, json.Unmarshal(sent.msg.Body, &decoded))
	assert.Equal(t, event, decoded)

	p.Close()
	assert.True(t, ch.closed)
}

func TestPublishAnalysisCompletedError(t *testing.T) {
	ch := &fakeChannel{err: errors.New("channel closed")}
	p := &Publisher{channel: ch, exchange: "x", logger: zap.NewNop()}

	err := p.PublishAnalysisCompleted(context.Background(), usecase.AnalysisCompleted{RequestID: "r"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ch.err)
}
